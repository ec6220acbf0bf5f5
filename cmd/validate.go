package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/lidarpcd/internal/config"
	"firestige.xyz/lidarpcd/internal/lidar"
	"firestige.xyz/lidarpcd/internal/source/file"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration, calibration and capture without extracting",
	Long: `Validate takes the same settings as extract. It prints the effective
configuration as YAML, then checks that the calibration file is usable and
that the capture header is a pcap or pcapng with Ethernet link type.
Nothing is written to the output directory.

Examples:
  lidarpcd validate -p 7502 -m os1.json -i drive.pcap -o clouds
  lidarpcd validate -c lidarpcd.yml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runValidate(cfg, afero.NewOsFs(), cmd.OutOrStdout())
	},
}

func init() {
	addRunFlags(validateCmd.Flags())
}

func runValidate(cfg *config.Config, fs afero.Fs, out io.Writer) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Fprintln(out, "# effective configuration")
	if _, err := out.Write(data); err != nil {
		return err
	}

	cal, err := lidar.LoadCalibration(fs, cfg.Meta)
	if err != nil {
		return err
	}
	model, err := lidar.NewModel(cal)
	if err != nil {
		return err
	}
	df := model.Format()
	fmt.Fprintf(out, "VALID: calibration %s: %d columns/frame, %d columns/packet, %d pixels/column, %d bytes/packet\n",
		cfg.Meta, df.ColumnsPerFrame, df.ColumnsPerPacket, df.PixelsPerColumn, model.PacketLen())

	src, err := file.Open(fs, cfg.Input)
	if err != nil {
		return err
	}
	defer src.Close()
	fmt.Fprintf(out, "VALID: capture %s: %s, link type %s\n", cfg.Input, src.Format(), src.LinkType())

	return nil
}
