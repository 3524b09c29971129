package configure

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Queue.MaxSize != 50 || c.Queue.RateLimit != 3 || c.Queue.Lookahead != 3 {
		t.Fatalf("unexpected queue defaults %+v", c.Queue)
	}
	if c.Queue.DedupWindow != time.Minute || c.Queue.RateWindow != 10*time.Second {
		t.Fatalf("unexpected window defaults %v %v", c.Queue.DedupWindow, c.Queue.RateWindow)
	}
	if c.Tts.DefaultVoice != "ann1" || c.Twitch.CommandPrefix != "!tts " {
		t.Fatalf("unexpected defaults %+v %+v", c.Tts, c.Twitch)
	}
	if len(c.Redis.Addresses) != 1 || c.Redis.Addresses[0] != "localhost:6379" {
		t.Fatalf("unexpected redis defaults %+v", c.Redis)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("QUEUE_MAX_SIZE", "10")
	t.Setenv("QUEUE_DEDUP_WINDOW", "30s")
	t.Setenv("PRIORITY_GIFT_BONUS", "7")
	t.Setenv("API_TOKEN", "secret")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Queue.MaxSize != 10 || c.Queue.DedupWindow != 30*time.Second || c.Priority.GiftBonus != 7 || c.ApiToken != "secret" {
		t.Fatalf("environment was not applied: %+v %+v %q", c.Queue, c.Priority, c.ApiToken)
	}
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("level: debug\nqueue:\n  rate_limit: 5\n  rate_window: 1m\ntts:\n  channel_id: \"6140e7bd5a1d7e8f3c2b1a00\"\n")
	if err := ioutil.WriteFile(file, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", file)

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Level != "debug" || c.Queue.RateLimit != 5 || c.Queue.RateWindow != time.Minute || c.Tts.ChannelID != "6140e7bd5a1d7e8f3c2b1a00" {
		t.Fatalf("file was not applied: %+v", c)
	}
	if c.Queue.MaxSize != 50 {
		t.Fatalf("defaults should survive a partial file, got max size %d", c.Queue.MaxSize)
	}
}
