// Parses flags and configures logging for the ingot pipeline.
//
// Every subcommand accepts the following flags:
//
//	-q, --quiet      Suppress informational output.
//	-v, --verbose    Enable verbose output.
//	-d, --debug      Enable debug output.
//	-m, --manifest   Release manifest path.
//
// Flags override build-time defaults set via linker flags. After parsing,
// the global logger is reconfigured to reflect the final level and output
// format before the subcommand runs.
package cli
