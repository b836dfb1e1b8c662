package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/config"
	"github.com/crocme10/area-net/internal/controller"
	"github.com/crocme10/area-net/internal/logging"
	"github.com/crocme10/area-net/internal/netid"
)

var (
	flagConfigDir string
	flagProfile   string
	flagOverrides []string
	flagDev       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Controller and block until shutdown",
	RunE:  runE,
}

func init() {
	runCmd.Flags().StringVarP(&flagConfigDir, "config-dir", "c", ".", "directory holding <profile>.json")
	runCmd.Flags().StringVarP(&flagProfile, "profile", "p", "default", "configuration profile name")
	runCmd.Flags().StringArrayVarP(&flagOverrides, "set", "s", nil, "key=value override, may be repeated")
	runCmd.Flags().BoolVar(&flagDev, "dev", false, "use development logging")
}

func setDefaults() {
	viper.SetDefault("label", flagProfile)
	viper.SetDefault("listen.address", "::1")
	viper.SetDefault("listen.port", 8090)
	viper.SetDefault("targets", []string{})
	viper.SetDefault("heartbeat.interval", "5s")
	viper.SetDefault("heartbeat.timeout", "15s")
	viper.SetDefault("monitor.idle.interval", "1s")
	viper.SetDefault("monitor.status.interval", "10s")
	viper.SetDefault("discovery.interval", "5s")
	viper.SetDefault("max_outgoing", 16)
	viper.SetDefault("max_nodes", 256)
	viper.SetDefault("status.output_path", "peers.json")
	viper.SetDefault("diagram.enabled", false)
	viper.SetDefault("diagram.output_path", "peers.d2")
	viper.SetDefault("shutdown.drain", "5s")
	viper.SetDefault("merge_cache.ttl", "2s")
}

// loadConfig assembles the resolved config.Config from layered
// sources: built-in defaults, the profile JSON file, then -s
// overrides, in the style of ijakenorton-Roundtable's
// cmd/config.LoadConfig and internal/utils.SetViperDefaults.
func loadConfig() (config.Config, error) {
	setDefaults()

	path := filepath.Join(flagConfigDir, flagProfile+".json")
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return config.Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	for _, kv := range flagOverrides {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return config.Config{}, fmt.Errorf("invalid -s override %q, expected key=value", kv)
		}
		viper.Set(parts[0], parts[1])
	}

	listen, err := netid.ParseNetAddress(fmt.Sprintf("[%s]:%d", viper.GetString("listen.address"), viper.GetInt("listen.port")))
	if err != nil {
		return config.Config{}, fmt.Errorf("parse listen address: %w", err)
	}

	var targets []netid.NetAddress
	for _, t := range viper.GetStringSlice("targets") {
		addr, err := netid.ParseNetAddress(t)
		if err != nil {
			return config.Config{}, fmt.Errorf("parse target %q: %w", t, err)
		}
		targets = append(targets, addr)
	}

	cfg := config.Config{
		Label:                 viper.GetString("label"),
		Listen:                listen,
		Targets:               targets,
		HeartbeatInterval:     viper.GetDuration("heartbeat.interval"),
		HeartbeatTimeout:      viper.GetDuration("heartbeat.timeout"),
		MonitorIdleInterval:   viper.GetDuration("monitor.idle.interval"),
		MonitorStatusInterval: viper.GetDuration("monitor.status.interval"),
		DiscoveryInterval:     viper.GetDuration("discovery.interval"),
		MaxOutgoing:           viper.GetInt("max_outgoing"),
		MaxNodes:              viper.GetInt("max_nodes"),
		StatusOutputPath:      viper.GetString("status.output_path"),
		DiagramEnabled:        viper.GetBool("diagram.enabled"),
		DiagramOutputPath:     viper.GetString("diagram.output_path"),
		ShutdownDrain:         viper.GetDuration("shutdown.drain"),
		MergeCacheTTL:         viper.GetDuration("merge_cache.ttl"),
	}
	return cfg, cfg.Validate()
}

func runE(cmd *cobra.Command, args []string) error {
	logger := logging.Must(flagDev)
	defer logger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	self := netid.NodeInfo{
		NodeId:          netid.NewNodeId(),
		Label:           netid.Label(cfg.Label),
		Listen:          cfg.Listen,
		ProtocolVersion: netid.ProtocolVersion,
	}

	ln, err := net.Listen("tcp", self.Listen.String())
	if err != nil {
		bindErr := &controller.BindError{Cause: err}
		logger.Error("failed to bind listen address", zap.String("addr", self.Listen.String()), zap.Error(bindErr))
		return bindErr
	}
	defer ln.Close()

	ctrl := controller.New(cfg, self, cfg.Targets, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("overlaynode starting",
		zap.String("node_id", self.NodeId.String()),
		zap.String("label", cfg.Label),
		zap.String("listen", self.Listen.String()),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx, ln)
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining peers", zap.Duration("drain", cfg.ShutdownDrain))

	select {
	case <-done:
	case <-time.After(cfg.ShutdownDrain + time.Second):
		logger.Warn("controller did not stop within drain window")
	}
	return nil
}
