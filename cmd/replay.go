package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lowaak/smart-trainer/csc-monitor/internal/csc"
	"github.com/spf13/cobra"
)

func (a *app) replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE",
		Short: "Decode recorded CSC Measurement payloads",
		Long: `Decodes one hex encoded CSC Measurement payload per line, as received
from the sensor given by --device. A line "lap" resets the odometer, empty lines
and lines starting with # are ignored. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			address := a.cfg.Device
			if address == "" {
				address = "replay"
			}
			decoder := csc.NewDecoder(a.logger, csc.Options{
				WheelCircumferenceMM: a.cfg.WheelCircumferenceMM,
				WheelAsCadence:       a.cfg.WheelAsCadence,
			})
			return replay(in, cmd.OutOrStdout(), decoder, address)
		},
	}
}

func replay(in io.Reader, out io.Writer, decoder *csc.Decoder, address string) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case line == "lap":
			decoder.ResetLap()
			fmt.Fprintf(out, "%d: lap\n", lineNo)
			continue
		}

		payload, err := hex.DecodeString(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		update, err := decoder.HandleNotification(address, address, payload)
		if err != nil {
			fmt.Fprintf(out, "%d: %v\n", lineNo, err)
			continue
		}
		fmt.Fprintf(out, "%d: %s\n", lineNo, formatUpdate(update))
	}
	return scanner.Err()
}

func formatUpdate(update csc.Update) string {
	var b strings.Builder
	if update.HasCadence {
		fmt.Fprintf(&b, "cadence=%.1frpm", update.CadenceRPM)
	} else {
		b.WriteString("cadence=-")
	}
	if update.HasSpeed {
		fmt.Fprintf(&b, " speed=%.1fkm/h distance=%.2fm overall=%.2fm",
			update.Speed.Speed.ToKMH(), update.Speed.Distance.ToM(), update.Speed.DistanceOverall.ToM())
	} else {
		b.WriteString(" speed=-")
	}
	for _, diagnostic := range update.Diagnostics {
		fmt.Fprintf(&b, " (%v)", diagnostic)
	}
	return b.String()
}
