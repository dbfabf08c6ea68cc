// Command speakerline runs the speaker-aware transcription pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/speakerline/cmd/speakerline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
