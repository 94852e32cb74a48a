package app_config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// This is the application config for the feed gateway. Knobs that tests need
// to shrink (delays, debounce) are expressed in milliseconds.
type FeedAppConfig struct {
	// Address the gateway listens on.
	LISTEN_ADDR string `yaml:"LISTEN_ADDR"`
	// Number of posts per feed page.
	PAGE_SIZE int `yaml:"PAGE_SIZE"`
	// Page-0 results younger than this are served from cache without a
	// store round trip.
	CACHE_DURATION_SECOND int64 `yaml:"CACHE_DURATION_SECOND"`
	// Debounce window for attention-resume reconciliation.
	RECONCILE_DEBOUNCE_MS int64 `yaml:"RECONCILE_DEBOUNCE_MS"`
	// Delay before post-mutation reconciliation, coalesces rapid toggles.
	ACTION_SYNC_DELAY_MS int64 `yaml:"ACTION_SYNC_DELAY_MS"`
}

func DefaultFeedAppConfig() FeedAppConfig {
	return FeedAppConfig{
		LISTEN_ADDR:           ":8080",
		PAGE_SIZE:             3,
		CACHE_DURATION_SECOND: 30,
		RECONCILE_DEBOUNCE_MS: 100,
		ACTION_SYNC_DELAY_MS:  50,
	}
}

// ParseFeedAppConfig reads the yaml config at path, falling back to defaults
// for the whole file if it's absent.
func ParseFeedAppConfig(path string) FeedAppConfig {
	c := DefaultFeedAppConfig()
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		log.Println("app config not found, using defaults: ", err.Error())
		return c
	}
	err = yaml.Unmarshal(yamlFile, &c)
	if err != nil {
		log.Fatal("Unmarshal: ", err)
	}
	return c
}

func (c FeedAppConfig) CacheDuration() time.Duration {
	return time.Duration(c.CACHE_DURATION_SECOND) * time.Second
}

func (c FeedAppConfig) ReconcileDebounce() time.Duration {
	return time.Duration(c.RECONCILE_DEBOUNCE_MS) * time.Millisecond
}

func (c FeedAppConfig) ActionSyncDelay() time.Duration {
	return time.Duration(c.ACTION_SYNC_DELAY_MS) * time.Millisecond
}
