package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobscout/internal/evaluation"
	"jobscout/internal/source"
)

const (
	app = "jobscout"
)

// Config is the full configuration surface of a run.
type Config struct {
	Storage    *StorageConfig      `mapstructure:"storage"`
	Evaluator  *EvaluatorConfig    `mapstructure:"evaluator"`
	Notify     *NotifyConfig       `mapstructure:"notify"`
	Profile    *evaluation.Profile `mapstructure:"profile"`
	Sources    *SourcesConfig      `mapstructure:"sources"`
	ResumeFile string              `mapstructure:"resume-file"`
	Pacing     time.Duration       `mapstructure:"pacing"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type EvaluatorConfig struct {
	Provider     string        `mapstructure:"provider"`
	Model        string        `mapstructure:"model"`
	APIKeyFile   string        `mapstructure:"api-key-file"`
	BaseURL      string        `mapstructure:"base-url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinScore     float64       `mapstructure:"min-score"`
	MaxRetries   int           `mapstructure:"max-retries"`
	MaxLogLength int           `mapstructure:"max-log-length"`
}

type NotifyConfig struct {
	Telegram *TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	TokenFile string `mapstructure:"token-file"`
	ChatID    string `mapstructure:"chat-id"`
}

type SourcesConfig struct {
	Board *source.BoardConfig `mapstructure:"board"`
	Feed  *source.FeedConfig  `mapstructure:"feed"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscout scrapes job postings, scores them against your profile with an LLM and notifies you of matches",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("evaluator.api-key-file", "JOBSCOUT_API_KEY_FILE"); err != nil {
		log.Fatalf("binding JOBSCOUT_API_KEY_FILE environment variable: %v", err)
	}

	if err := viper.BindEnv("notify.telegram.token-file", "TELEGRAM_TOKEN_FILE"); err != nil {
		log.Fatalf("binding TELEGRAM_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is needed only for the run command. If there is no config, we can skip initialization.
	if runCmd.CalledAs() == "" && resetCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
