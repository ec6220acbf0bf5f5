package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"firestige.xyz/lidarpcd/internal/config"
	"firestige.xyz/lidarpcd/internal/lidar"
	"firestige.xyz/lidarpcd/internal/log"
	"firestige.xyz/lidarpcd/internal/metrics"
	"firestige.xyz/lidarpcd/internal/pipeline"
	"firestige.xyz/lidarpcd/internal/sink"
	"firestige.xyz/lidarpcd/internal/source/file"
	"firestige.xyz/lidarpcd/internal/utils"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write one PCD file per complete rotation in a capture",
	Long: `Extract point clouds from a capture.

The run:
  1. Loads the sensor calibration (-m)
  2. Opens the capture (-i), pcap or pcapng with Ethernet link type
  3. Reassembles fragmented IPv4 datagrams
  4. Decodes UDP packets sent to the sensor port (-p)
  5. Writes every complete rotation to DIR/NNNN.pcd (-o, -d)

A rotation still incomplete when the capture ends is not written.

Examples:
  lidarpcd extract -p 7502 -m os1.json -i drive.pcap -o clouds
  lidarpcd extract -p 7502 -m os1.json -i drive.pcapng -o clouds --host 192.168.1.201 -d 6`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = runExtract(ctx, cfg, afero.NewOsFs())
		return err
	},
}

func init() {
	addRunFlags(extractCmd.Flags())
}

// loadConfig builds the run configuration from the command's flags and
// installs the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

// runExtract performs one extraction on fs.
func runExtract(ctx context.Context, cfg *config.Config, fs afero.Fs) (stats pipeline.Stats, err error) {
	cal, err := lidar.LoadCalibration(fs, cfg.Meta)
	if err != nil {
		return stats, err
	}
	model, err := lidar.NewModel(cal)
	if err != nil {
		return stats, err
	}

	if err := fs.MkdirAll(cfg.Output, 0o755); err != nil {
		return stats, fmt.Errorf("failed to create output directory: %w", err)
	}

	src, err := file.Open(fs, cfg.Input)
	if err != nil {
		return stats, err
	}
	defer src.Close()

	filter, err := utils.NewPacketFilter(cfg.HostFilter())
	if err != nil {
		return stats, err
	}

	slog.Info("capture opened",
		"path", src.Path(),
		"format", src.Format().String(),
		"link_type", src.LinkType().String(),
		"columns_per_frame", model.Format().ColumnsPerFrame,
		"pixels_per_column", model.Format().PixelsPerColumn,
		"filter_instructions", filter.Len(),
	)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(); err != nil {
			return stats, err
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				slog.Warn("metrics server shutdown", "error", err)
			}
		}()
	}

	w := sink.NewWriter(fs)
	p := pipeline.New(pipeline.Config{
		Source:           src,
		Filter:           filter,
		Model:            model,
		Sink:             w,
		Port:             uint16(cfg.Port),
		OutputDir:        cfg.Output,
		Digits:           cfg.Digits,
		ProgressInterval: cfg.ProgressInterval,
	})

	start := time.Now()
	runErr := p.Run(ctx)
	closeErr := w.Close()
	stats = p.Stats()

	files, bytes := w.Written()
	slog.Info("extraction finished",
		"files", files,
		"bytes", bytes,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)

	if runErr != nil {
		return stats, runErr
	}
	if closeErr != nil {
		return stats, fmt.Errorf("point cloud writer failed: %w", closeErr)
	}
	return stats, nil
}
