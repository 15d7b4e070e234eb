package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config — полная конфигурация проекта
type Config struct {
	Database  DBConfig
	RabbitMQ  MQConfig
	WebSocket WSConfig
	Services  ServicesConfig
	JWT       JWTConfig
	Map       MapConfig
	Storage   StorageConfig
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type MQConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	VHost    string
	Enabled  bool
}

type WSConfig struct {
	AllowedOrigin string
}

type ServicesConfig struct {
	MapServicePort   int
	AdminServicePort int
}

type JWTConfig struct {
	Secret        string
	ExpiryMinutes int
}

// MapConfig — внешние сервисы и значения по умолчанию для карты
type MapConfig struct {
	OSRMBaseURL     string
	RoutingTimeout  time.Duration
	SnapshotDriver  string // sqlite | file
	SnapshotPath    string
	NominatimServer string
	GeoClueDesktop  string
	DefaultLat      float64
	DefaultLng      float64
	DefaultZoom     int
	DefaultTiles    string
}

// StorageConfig — публичное файловое хранилище (аватары, фото авто)
type StorageConfig struct {
	PublicURL string
}

// Load — загрузка из CONFIG_DIR (по умолчанию ./config), ENV перекрывает YAML
func Load() Config {
	dir := getEnv("CONFIG_DIR", "./config")
	cfg := Config{}

	db := open(dir, "db.yaml", "")
	cfg.Database.Host = db.getStr("DB_HOST", "host", "localhost")
	cfg.Database.Port = db.getInt("DB_PORT", "port", 5432)
	cfg.Database.User = db.getStr("DB_USER", "user", "taxirn_user")
	cfg.Database.Password = db.getStr("DB_PASSWORD", "password", "taxirn_pass")
	cfg.Database.Database = db.getStr("DB_NAME", "database", "taxirn_db")
	cfg.Database.SSLMode = db.getStr("DB_SSLMODE", "sslmode", "disable")

	mq := open(dir, "mq.yaml", "")
	cfg.RabbitMQ.Host = mq.getStr("RABBITMQ_HOST", "host", "localhost")
	cfg.RabbitMQ.Port = mq.getInt("RABBITMQ_PORT", "port", 5672)
	cfg.RabbitMQ.User = mq.getStr("RABBITMQ_USER", "user", "guest")
	cfg.RabbitMQ.Password = mq.getStr("RABBITMQ_PASSWORD", "password", "guest")
	cfg.RabbitMQ.VHost = mq.getStr("RABBITMQ_VHOST", "vhost", "/")
	cfg.RabbitMQ.Enabled = mq.getBool("RABBITMQ_ENABLED", "enabled", true)

	ws := open(dir, "ws.yaml", "")
	cfg.WebSocket.AllowedOrigin = ws.getStr("WS_ALLOWED_ORIGIN", "allowed_origin", "*")

	svc := open(dir, "service.yaml", "")
	cfg.Services.MapServicePort = svc.getInt("MAP_SERVICE_PORT", "map_service", 3000)
	cfg.Services.AdminServicePort = svc.getInt("ADMIN_SERVICE_PORT", "admin_service", 3004)

	// jwt.yaml бывает как плоский, так и с секцией jwt:
	jwt := open(dir, "jwt.yaml", "jwt")
	cfg.JWT.Secret = jwt.getStr("JWT_SECRET", "secret", "dev_secret")
	cfg.JWT.ExpiryMinutes = jwt.getInt("JWT_EXPIRY_MINUTES", "expiry_minutes", 60)

	m := open(dir, "map.yaml", "map")
	cfg.Map.OSRMBaseURL = m.getStr("OSRM_BASE_URL", "osrm_base_url", "https://router.project-osrm.org")
	cfg.Map.RoutingTimeout = time.Duration(m.getInt("OSRM_TIMEOUT_SECONDS", "osrm_timeout_seconds", 10)) * time.Second
	cfg.Map.SnapshotDriver = m.getStr("MAP_STORE_DRIVER", "store_driver", "sqlite")
	cfg.Map.SnapshotPath = m.getStr("MAP_STORE_PATH", "store_path", "./data/map_state.db")
	cfg.Map.NominatimServer = m.getStr("NOMINATIM_SERVER", "nominatim_server", "https://nominatim.openstreetmap.org")
	cfg.Map.GeoClueDesktop = m.getStr("GEOCLUE_DESKTOP_ID", "geoclue_desktop_id", "taxirn")
	cfg.Map.DefaultLat = m.getFloat("MAP_DEFAULT_LAT", "default_lat", 10.196805)
	cfg.Map.DefaultLng = m.getFloat("MAP_DEFAULT_LNG", "default_lng", -71.30903)
	cfg.Map.DefaultZoom = m.getInt("MAP_DEFAULT_ZOOM", "default_zoom", 14)
	cfg.Map.DefaultTiles = m.getStr("MAP_DEFAULT_TILES", "default_tiles", "GoogleMaps")

	st := open(dir, "storage.yaml", "storage")
	cfg.Storage.PublicURL = st.getStr("STORAGE_PUBLIC_URL", "public_url", "http://localhost:54321/storage/v1/object/public")

	return cfg
}

// source — ключи одного YAML файла; пустой source означает "только ENV и дефолты"
type source map[string]string

// open читает файл и возвращает либо секцию section, либо корень
func open(dir, name, section string) source {
	kv, err := parseYAML(filepath.Join(dir, name))
	if err != nil {
		return source{}
	}
	if section != "" {
		if sec, ok := kv[section]; ok {
			return sec
		}
	}
	return kv[""]
}

func (s source) lookup(envKey, key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v, true
	}
	if v, ok := s[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s source) getStr(envKey, key, def string) string {
	if v, ok := s.lookup(envKey, key); ok {
		return v
	}
	return def
}

func (s source) getInt(envKey, key string, def int) int {
	if v, ok := s.lookup(envKey, key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (s source) getFloat(envKey, key string, def float64) float64 {
	if v, ok := s.lookup(envKey, key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getBool(envKey, key string, def bool) bool {
	if v, ok := s.lookup(envKey, key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// parseYAML — парсит простые YAML файлы без глубокой вложенности.
// Формат: key: value (плоский) либо section: \n  key: value
func parseYAML(path string) (map[string]map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result := map[string]map[string]string{"": {}}
	section := ""

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		raw := sc.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// секция: строка без отступа, заканчивается на ':'
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			section = strings.TrimSuffix(line, ":")
			if result[section] == nil {
				result[section] = map[string]string{}
			}
			continue
		}
		if raw == line {
			// ключ без отступа после секции снова относится к корню
			section = ""
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		result[section][key] = val
	}

	return result, sc.Err()
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// DSN возвращает строку подключения к БД
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// AMQPURL возвращает URL подключения к RabbitMQ
func (c MQConfig) AMQPURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}
