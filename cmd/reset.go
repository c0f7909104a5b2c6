package cmd

import (
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"jobscout/internal/logger"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the local job database so every posting is processed again",
	Run: func(_ *cobra.Command, _ []string) {
		reset()
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func reset() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	path := defaultStoragePath
	if config != nil && config.Storage != nil && strings.TrimSpace(config.Storage.Path) != "" {
		path = config.Storage.Path
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("nothing to delete", zap.String("path", path))
		return
	}

	prompt := promptui.Select{
		Label: "Delete the job database at " + path + "? Every posting will be re-evaluated and re-notified",
		Items: []string{PromptNo, PromptYes},
	}

	_, answer, err := prompt.Run()
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}

	if answer != PromptYes {
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Fatal("deleting the job database", zap.String("path", path), zap.Error(err))
	}

	logger.Info("job database deleted", zap.String("path", path))
}
