package configure

import (
	"bytes"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	ConfigFile string `mapstructure:"config_file" json:"config_file"`
	Level      string `mapstructure:"level" json:"level"`

	ApiBind  string   `mapstructure:"api_bind" json:"api_bind"`
	ApiToken string   `mapstructure:"api_token" json:"api_token"`
	Cors     []string `mapstructure:"cors" json:"cors"`

	MetricsEnabled bool `mapstructure:"metrics_enabled" json:"metrics_enabled"`

	Redis struct {
		Addresses   []string `mapstructure:"addresses" json:"addresses"`
		Username    string   `mapstructure:"username" json:"username"`
		Password    string   `mapstructure:"password" json:"password"`
		Database    int      `mapstructure:"database" json:"database"`
		Sentinel    bool     `mapstructure:"sentinel" json:"sentinel"`
		MasterName  string   `mapstructure:"master_name" json:"master_name"`
		TaskSetKey  string   `mapstructure:"task_set_key" json:"task_set_key"`
		OutputEvent string   `mapstructure:"output_event" json:"output_event"`
	} `mapstructure:"redis" json:"redis"`

	Mongo struct {
		URI string `mapstructure:"uri" json:"uri"`
		DB  string `mapstructure:"db" json:"db"`
	} `mapstructure:"mongo" json:"mongo"`

	StreamElements struct {
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
		WssUrl     string `mapstructure:"wss_url" json:"wss_url"`
		AuthToken  string `mapstructure:"auth_token" json:"auth_token"`
		AuthMethod string `mapstructure:"auth_method" json:"auth_method"`
	} `mapstructure:"stream_elements" json:"stream_elements"`

	Twitch struct {
		Enabled             bool     `mapstructure:"enabled" json:"enabled"`
		BotUsername         string   `mapstructure:"bot_username" json:"bot_username"`
		BotToken            string   `mapstructure:"bot_token" json:"bot_token"`
		StreamerChannel     string   `mapstructure:"streamer_channel" json:"streamer_channel"`
		ControlChannel      string   `mapstructure:"control_channel" json:"control_channel"`
		CommandPrefix       string   `mapstructure:"command_prefix" json:"command_prefix"`
		WhitelistedAccounts []string `mapstructure:"whitelisted_accounts" json:"whitelisted_accounts"`
	} `mapstructure:"twitch" json:"twitch"`

	Queue struct {
		MaxSize         int           `mapstructure:"max_size" json:"max_size"`
		DedupWindow     time.Duration `mapstructure:"dedup_window" json:"dedup_window"`
		DedupCacheSize  int           `mapstructure:"dedup_cache_size" json:"dedup_cache_size"`
		RateLimit       int           `mapstructure:"rate_limit" json:"rate_limit"`
		RateWindow      time.Duration `mapstructure:"rate_window" json:"rate_window"`
		RateLedgerSize  int           `mapstructure:"rate_ledger_size" json:"rate_ledger_size"`
		Lookahead       int           `mapstructure:"lookahead" json:"lookahead"`
		AvgItemDuration time.Duration `mapstructure:"avg_item_duration" json:"avg_item_duration"`
		PollInterval    time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
		CycleDelay      time.Duration `mapstructure:"cycle_delay" json:"cycle_delay"`
		InfoLimit       int           `mapstructure:"info_limit" json:"info_limit"`
	} `mapstructure:"queue" json:"queue"`

	Priority struct {
		LevelWeight     int `mapstructure:"level_weight" json:"level_weight"`
		SubscriberBonus int `mapstructure:"subscriber_bonus" json:"subscriber_bonus"`
		GiftBonus       int `mapstructure:"gift_bonus" json:"gift_bonus"`
		ManualBonus     int `mapstructure:"manual_bonus" json:"manual_bonus"`
	} `mapstructure:"priority" json:"priority"`

	Tts struct {
		ChannelID        string        `mapstructure:"channel_id" json:"channel_id"`
		DefaultVoice     string        `mapstructure:"default_voice" json:"default_voice"`
		DefaultEngine    string        `mapstructure:"default_engine" json:"default_engine"`
		SynthTimeout     time.Duration `mapstructure:"synth_timeout" json:"synth_timeout"`
		PlaybackGrace    time.Duration `mapstructure:"playback_grace" json:"playback_grace"`
		WavExpiry        time.Duration `mapstructure:"wav_expiry" json:"wav_expiry"`
		MaxSegmentLength int           `mapstructure:"max_segment_length" json:"max_segment_length"`
		MaxTextLength    int           `mapstructure:"max_text_length" json:"max_text_length"`
	} `mapstructure:"tts" json:"tts"`
}

func defaultConfig() Config {
	c := Config{
		ConfigFile: "config.yaml",
		Level:      "info",
		ApiBind:    ":3000",
	}

	c.Redis.Addresses = []string{"localhost:6379"}
	c.Redis.TaskSetKey = "tts:tasks"
	c.Redis.OutputEvent = "tts:output"

	c.Mongo.URI = "mongodb://localhost:27017"
	c.Mongo.DB = "yapper"

	c.StreamElements.WssUrl = "wss://realtime.streamelements.com/socket.io/?cluster=main&EIO=3&transport=websocket"
	c.StreamElements.AuthMethod = "jwt"

	c.Twitch.CommandPrefix = "!tts "

	c.Queue.MaxSize = 50
	c.Queue.DedupWindow = time.Minute
	c.Queue.DedupCacheSize = 1000
	c.Queue.RateLimit = 3
	c.Queue.RateWindow = 10 * time.Second
	c.Queue.RateLedgerSize = 1000
	c.Queue.Lookahead = 3
	c.Queue.AvgItemDuration = 5 * time.Second
	c.Queue.PollInterval = 100 * time.Millisecond
	c.Queue.CycleDelay = 100 * time.Millisecond
	c.Queue.InfoLimit = 5

	c.Priority.LevelWeight = 1
	c.Priority.SubscriberBonus = 5
	c.Priority.GiftBonus = 20
	c.Priority.ManualBonus = 50

	c.Tts.DefaultVoice = "ann1"
	c.Tts.DefaultEngine = "precise"
	c.Tts.SynthTimeout = 30 * time.Second
	c.Tts.PlaybackGrace = 2 * time.Second
	c.Tts.WavExpiry = 10 * time.Minute
	c.Tts.MaxSegmentLength = 250
	c.Tts.MaxTextLength = 500

	return c
}

func initLog(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetReportCaller(true)
	if l, err := log.ParseLevel(level); err == nil {
		log.SetLevel(l)
	}
}

func checkErr(err error) {
	if err != nil {
		log.WithError(err).Fatal("failed on configure")
	}
}

// Load builds the config from defaults, then the environment, then the config file.
func Load() (*Config, error) {
	config := viper.New()

	b, err := json.Marshal(defaultConfig())
	if err != nil {
		return nil, err
	}
	defaults := viper.New()
	defaults.SetConfigType("json")
	if err := defaults.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	for _, k := range defaults.AllKeys() {
		config.SetDefault(k, defaults.Get(k))
	}

	// Environment
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)
	config.AutomaticEnv()

	// File
	config.SetConfigFile(config.GetString("config_file"))
	config.AddConfigPath(".")
	if err := config.ReadInConfig(); err != nil {
		log.Warning(err)
		log.Info("Using default config")
	}

	c := &Config{}
	if err := config.Unmarshal(c); err != nil {
		return nil, err
	}

	return c, nil
}

// New loads the config and sets up logging, exiting on failure.
func New() *Config {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetReportCaller(true)
	log.SetLevel(log.DebugLevel)

	c, err := Load()
	checkErr(err)

	initLog(c.Level)

	return c
}
