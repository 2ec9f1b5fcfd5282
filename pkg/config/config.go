package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ModelSettings struct {
		Model       string  `yaml:"model"`
		Temperature float64 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"model_settings"`
	Schedule struct {
		DailyReportHour int `yaml:"daily_report_hour"`
		MorningHour     int `yaml:"morning_hour"`
	} `yaml:"schedule"`
	Timeline struct {
		MaxResults int `yaml:"max_results"`
	} `yaml:"timeline"`
	Assets struct {
		Dir string `yaml:"dir"`
	} `yaml:"assets"`
}

func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		// Set default values
		config.ModelSettings.Model = "gpt-4o-mini"
		config.ModelSettings.Temperature = 0.7
		config.ModelSettings.MaxTokens = 200
		config.Schedule.DailyReportHour = 21
		config.Schedule.MorningHour = 7
		config.Timeline.MaxResults = 50
		config.Assets.Dir = "assets"
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}
