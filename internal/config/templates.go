package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Copy Trader Configuration

[app]
default_user = "demo"
initial_cash = 10000.0
currency = "USD"

[store]
# sqlite, redis or memory
backend = "sqlite"
sqlite_path = "copytrader.db"
redis_addr = "localhost:6379"
redis_password = ""
redis_db = 0
redis_prefix = "copytrader"

[signals]
mock_enabled = true
mock_interval = "30s"
kafka_enabled = false
kafka_brokers = ["localhost:9092"]
kafka_group_id = "copytrader"
kafka_topic = "copytrader.signals"
buffer_size = 256

[publish]
kafka_enabled = false
kafka_brokers = ["localhost:9092"]
kafka_topic = "copytrader.transactions"

[http]
addr = ":8080"
# POST /signals per second; 0 disables the limit
signal_rate = 50.0
signal_burst = 100

[notifications]
terminal = true
webhook_url = ""
inbox_limit = 100

[logging]
level = "info"
file = false
file_path = "logs/copytrader.log"
max_size = 100
max_backups = 5
max_age = 30
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
