// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type InvalidationCfg struct {
	Enabled bool
	Driver  string
	Topic   string
	Brokers string
	GroupID string
}

type RiskEventsCfg struct {
	Enabled   bool
	Topic     string
	QueueSize int
}

type ProvidersCfg struct {
	FIRMSKey          string
	FIRMSBaseURL      string
	FIRMSSensors      []string
	FIRMSLookbackDays int
	N2YOKey           string
	N2YOBaseURL       string
	N2YOTracked       []int
	N2YOObserverLat   float64
	N2YOObserverLon   float64
	N2YOPassDays      int
	N2YOPassMinVisSec int
	N2YOAboveRadius   int
	N2YOAboveCategory int
	GNewsKey          string
	GNewsBaseURL      string
	GDELTBaseURL      string
	RSSFeeds          []string
	ReportQuery       string
	ReportLimit       int
}

type BreakerCfg struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type Config struct {
	Addr                string
	LogLevel            string
	LogConsole          bool
	LogSampleN          int
	RegionsFile         string
	CacheBackend        string
	RedisAddr           string
	RedisPrefix         string
	CacheOpTimeout      time.Duration
	CacheTTLDefault     time.Duration
	CacheTTLOvr         map[string]time.Duration
	CacheStaleRetention time.Duration
	FetchTimeout        time.Duration
	FetchTimeoutOvr     map[string]time.Duration
	WarmEnabled         bool
	WarmInterval        time.Duration
	WarmRefreshAhead    time.Duration
	WarmMaxConcurrency  int
	DedupWindow         time.Duration
	MaxReportAge        time.Duration
	H3Res               int
	MetricsEnabled      bool
	KafkaBrokers        string
	Breaker             BreakerCfg
	Providers           ProvidersCfg
	Invalidation        InvalidationCfg
	RiskEvents          RiskEventsCfg
}

// Load reads an optional .env file and then the environment.
// Variables already set in the environment take precedence over the file.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
	return FromEnv()
}

func FromEnv() Config {
	res := getint("H3_RES", 6)
	if res < 0 || res > 15 {
		res = 6
	}

	ttlDefault := getduration("CACHE_TTL_DEFAULT", 3*time.Minute)
	brokers := getenv("KAFKA_BROKERS", "localhost:9092")

	return Config{
		Addr:                getenv("ADDR", ":8090"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogConsole:          getbool("LOG_CONSOLE", false),
		LogSampleN:          getint("LOG_SAMPLE_N", 0),
		RegionsFile:         getenv("REGIONS_FILE", ""),
		CacheBackend:        strings.ToLower(getenv("CACHE_BACKEND", "memory")),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		RedisPrefix:         getenv("REDIS_PREFIX", "sitrep:"),
		CacheOpTimeout:      getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		CacheTTLDefault:     ttlDefault,
		CacheTTLOvr:         parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")),
		CacheStaleRetention: getduration("CACHE_STALE_RETENTION", 0),
		FetchTimeout:        getduration("FETCH_TIMEOUT", 12*time.Second),
		FetchTimeoutOvr:     parseDurationMap(getenv("FETCH_TIMEOUT_OVERRIDES", "hotspot=15s")),
		WarmEnabled:         getbool("WARM_ENABLED", true),
		WarmInterval:        getduration("WARM_INTERVAL", 3*time.Minute),
		WarmRefreshAhead:    getduration("WARM_REFRESH_AHEAD", 30*time.Second),
		WarmMaxConcurrency:  getint("WARM_MAX_CONCURRENCY", 4),
		DedupWindow:         getduration("DEDUP_WINDOW", 48*time.Hour),
		MaxReportAge:        getduration("MAX_REPORT_AGE", 7*24*time.Hour),
		H3Res:               res,
		MetricsEnabled:      getbool("METRICS_ENABLED", true),
		KafkaBrokers:        brokers,
		Breaker: BreakerCfg{
			MaxFailures: uint32(max(getint("BREAKER_MAX_FAILURES", 5), 1)),
			OpenTimeout: getduration("BREAKER_OPEN_TIMEOUT", time.Minute),
		},
		Providers: ProvidersCfg{
			FIRMSKey:          getenv("FIRMS_KEY", ""),
			FIRMSBaseURL:      getenv("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
			FIRMSSensors:      splitList(getenv("FIRMS_SENSORS", "VIIRS_SNPP_NRT,VIIRS_NOAA20_NRT,MODIS_NRT")),
			FIRMSLookbackDays: getint("FIRMS_LOOKBACK_DAYS", 2),
			N2YOKey:           getenv("N2YO_KEY", ""),
			N2YOBaseURL:       getenv("N2YO_BASE_URL", "https://api.n2yo.com/rest/v1/satellite"),
			N2YOTracked:       parseIntList(getenv("N2YO_TRACKED", "25544,40069,42063,33591,43013,27424,27386,49260,39084,43602")),
			N2YOObserverLat:   getfloat("N2YO_OBSERVER_LAT", 12.4539),
			N2YOObserverLon:   getfloat("N2YO_OBSERVER_LON", 4.1975),
			N2YOPassDays:      getint("N2YO_PASS_DAYS", 5),
			N2YOPassMinVisSec: getint("N2YO_PASS_MIN_VISIBILITY", 60),
			N2YOAboveRadius:   getint("N2YO_ABOVE_RADIUS", 70),
			N2YOAboveCategory: getint("N2YO_ABOVE_CATEGORY", 0),
			GNewsKey:          getenv("GNEWS_KEY", ""),
			GNewsBaseURL:      getenv("GNEWS_BASE_URL", "https://gnews.io/api/v4/search"),
			GDELTBaseURL:      getenv("GDELT_BASE_URL", "https://api.gdeltproject.org/api/v2/doc/doc"),
			RSSFeeds:          splitList(getenv("RSS_FEEDS", defaultFeeds)),
			ReportQuery:       getenv("REPORT_QUERY", "Kebbi state security"),
			ReportLimit:       getint("REPORT_LIMIT", 15),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Driver:  getenv("INVALIDATION_DRIVER", "none"),
			Topic:   getenv("KAFKA_TOPIC", "sitrep-invalidation"),
			Brokers: brokers,
			GroupID: getenv("KAFKA_GROUP_ID", "sitrep-cache-invalidator"),
		},
		RiskEvents: RiskEventsCfg{
			Enabled:   getbool("RISK_EVENTS_ENABLED", false),
			Topic:     getenv("RISK_EVENTS_TOPIC", "sitrep-risk-changes"),
			QueueSize: getint("RISK_EVENTS_QUEUE", 1024),
		},
	}
}

const defaultFeeds = "Premium Times=https://www.premiumtimesng.com/category/news/top-news/feed," +
	"Daily Trust=https://dailytrust.com/feed/," +
	"Sahara Reporters=https://saharareporters.com/rss.xml," +
	"Channels TV=https://www.channelstv.com/feed/," +
	"Punch=https://punchng.com/feed/"

// TTLFor returns the cache TTL of a category.
func (c Config) TTLFor(category string) time.Duration {
	if d, ok := c.CacheTTLOvr[category]; ok && d > 0 {
		return d
	}
	return c.CacheTTLDefault
}

// FetchTimeoutFor returns the per-caller fetch timeout of a category.
func (c Config) FetchTimeoutFor(category string) time.Duration {
	if d, ok := c.FetchTimeoutOvr[category]; ok && d > 0 {
		return d
	}
	return c.FetchTimeout
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "hotspot=5m,report=30s" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

func parseIntList(s string) []int {
	var out []int
	for _, p := range splitList(s) {
		if n, err := strconv.Atoi(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}
