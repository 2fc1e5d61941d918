package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env from the working directory when it exists. Variables
// already set in the environment win. It reports whether a file was loaded.
func LoadDotEnv(paths ...string) (bool, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var found []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return false, nil
	}
	if err := godotenv.Load(found...); err != nil {
		return false, fmt.Errorf("load %s: %w", strings.Join(found, ","), err)
	}
	return true, nil
}

func Getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func GetenvInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

// GetenvList splits a comma separated variable, dropping blanks.
func GetenvList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Orders struct {
	Port     string
	LogLevel string

	TelegramToken  string
	TelegramChatID string
	TelegramAPIURL string

	ReceiptSecret string
	ReceiptTTL    time.Duration

	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string
}

func (c Orders) TelegramConfigured() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

var ErrReceiptSecretShort = errors.New("RECEIPT_SECRET must be at least 32 chars")

func LoadOrders() (Orders, error) {
	c := Orders{
		Port:           Getenv("PORT", "8083"),
		LogLevel:       Getenv("LOG_LEVEL", "info"),
		TelegramToken:  Getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: Getenv("TELEGRAM_CHAT_ID", ""),
		TelegramAPIURL: Getenv("TELEGRAM_API_URL", "https://api.telegram.org"),
		ReceiptSecret:  Getenv("RECEIPT_SECRET", ""),
		DatabaseURL:    Getenv("DATABASE_URL", ""),
		KafkaBrokers:   GetenvList("KAFKA_BROKERS"),
		KafkaTopic:     Getenv("KAFKA_TOPIC", "orders.placed"),
	}

	hours, err := GetenvInt("RECEIPT_TTL_HOURS", 24)
	if err != nil {
		return Orders{}, err
	}
	c.ReceiptTTL = time.Duration(hours) * time.Hour

	if c.ReceiptSecret != "" && len(c.ReceiptSecret) < 32 {
		return Orders{}, ErrReceiptSecretShort
	}
	return c, nil
}

type Catalog struct {
	Port        string
	LogLevel    string
	MenuPath    string
	DatabaseURL string
}

func LoadCatalog() Catalog {
	return Catalog{
		Port:        Getenv("PORT", "8082"),
		LogLevel:    Getenv("LOG_LEVEL", "info"),
		MenuPath:    Getenv("MENU_PATH", ""),
		DatabaseURL: Getenv("DATABASE_URL", ""),
	}
}

type Gateway struct {
	Port            string
	LogLevel        string
	CatalogURL      string
	OrdersURL       string
	Origins         []string
	MetricsToken    string
	OrderRateLimit  int
	OrderRateWindow time.Duration
}

func LoadGateway() (Gateway, error) {
	limit, err := GetenvInt("ORDER_RATE_LIMIT", 10)
	if err != nil {
		return Gateway{}, err
	}

	origins := GetenvList("ORIGIN")
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return Gateway{
		Port:            Getenv("PORT", "8080"),
		LogLevel:        Getenv("LOG_LEVEL", "info"),
		CatalogURL:      Getenv("CATALOG_URL", "http://catalog:8082"),
		OrdersURL:       Getenv("ORDERS_URL", "http://orders:8083"),
		Origins:         origins,
		MetricsToken:    Getenv("METRICS_TOKEN", ""),
		OrderRateLimit:  limit,
		OrderRateWindow: time.Minute,
	}, nil
}

type Storefront struct {
	APIURL   string
	Home     string
	LogLevel string
}

func LoadStorefront() (Storefront, error) {
	home := Getenv("STOREFRONT_HOME", "")
	if home == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Storefront{}, fmt.Errorf("resolve state dir: %w", err)
		}
		home = filepath.Join(dir, "slice-sizzle")
	}

	return Storefront{
		APIURL:   Getenv("API_URL", "http://localhost:8080"),
		Home:     home,
		LogLevel: Getenv("LOG_LEVEL", "warn"),
	}, nil
}
