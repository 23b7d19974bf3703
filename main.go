package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xkayo32/pydevbot/agent"
	"github.com/xkayo32/pydevbot/analytics"
	"github.com/xkayo32/pydevbot/config"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "pydevbot", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage")
	cmd.Flags().Duration("session-idle-timeout", 30*time.Minute, "inactivity window before a session is abandoned")
	cmd.Flags().Duration("idle-check-interval", time.Minute, "how often idle sessions are reaped")
	cmd.Flags().Duration("retry-poll-interval", time.Second, "how often due webhook retries are polled")
	cmd.Flags().Duration("webhook-timeout", 10*time.Second, "timeout of one webhook delivery attempt")
	cmd.Flags().Duration("webhook-retry-delay", 30*time.Second, "base delay between webhook retries")
	cmd.Flags().String("webhook-retry-policy", "FIXED", "webhook retry policy FIXED/BACKOFF")
	cmd.Flags().Int("webhook-max-retries", 3, "default delivery attempts per webhook event")
	cmd.Flags().Bool("webhook-skip-tls-verify", false, "skip tls verification on webhook endpoints")
	cmd.Flags().Int("max-steps", 100, "maximum nodes walked in one session advance")
	cmd.Flags().Int("dispatcher-capacity", 512, "webhook dispatcher queue capacity")
	cmd.Flags().String("analytics-impl", "NOOP_DATA_COLLECTOR", "session data collector implementation")
	cmd.Flags().String("analytics-file", "analytics.log", "target file of the log file data collector")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.SessionIdleTimeout = viper.GetDuration("session-idle-timeout")
	c.cfg.IdleCheckInterval = viper.GetDuration("idle-check-interval")
	c.cfg.RetryPollInterval = viper.GetDuration("retry-poll-interval")
	c.cfg.Webhook.Timeout = viper.GetDuration("webhook-timeout")
	c.cfg.Webhook.RetryDelay = viper.GetDuration("webhook-retry-delay")
	c.cfg.Webhook.RetryPolicy = config.RetryPolicy(viper.GetString("webhook-retry-policy"))
	c.cfg.Webhook.MaxRetries = viper.GetInt("webhook-max-retries")
	c.cfg.Webhook.SkipTLSVerify = viper.GetBool("webhook-skip-tls-verify")
	c.cfg.MaxStepsPerAdvance = viper.GetInt("max-steps")
	c.cfg.DispatcherCapacity = viper.GetInt("dispatcher-capacity")
	c.cfg.AnalyticsConfig.CollectorType = analytics.DataCollectorType(viper.GetString("analytics-impl"))
	c.cfg.AnalyticsConfig.FileName = viper.GetString("analytics-file")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "pydevbot",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
