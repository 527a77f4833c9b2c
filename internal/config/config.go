// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	BackupDir string `json:"backup_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 生成服务凭证（进程范围的单个不透明字符串）
	// 每次变更都写入配置文件，清空时从文件中整体移除
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`

	// 参考图加载限制
	MaxImageBytes int64 `json:"max_image_bytes"`
}

// Config 存储应用配置
type Config struct {
	Port          string
	DataDir       string
	BackupDir     string
	LogDir        string
	DebugMode     bool
	GeminiAPIKey  string
	MaxImageBytes int64
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	// 创建配置
	config := &Config{
		Port:          getEnv("PORT", "8080"),
		DataDir:       getEnvPath("DATA_DIR", "data"),
		BackupDir:     getEnvPath("BACKUP_DIR", filepath.Join(getEnv("DATA_DIR", "data"), "backups")),
		LogDir:        getEnvPath("LOG_DIR", "logs"),
		DebugMode:     getEnvBool("DEBUG_MODE", true),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		MaxImageBytes: 20 << 20, // 20MB
	}

	// 验证生成服务凭证
	if config.GeminiAPIKey == "" {
		// 只记录警告，不返回错误
		log.Println("警告: 未设置生成服务API密钥，将需要在会话中配置才能使用生成功能")
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	// 创建初始配置
	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:          baseConfig.Port,
		DataDir:       baseConfig.DataDir,
		BackupDir:     baseConfig.BackupDir,
		LogDir:        baseConfig.LogDir,
		DebugMode:     baseConfig.DebugMode,
		GeminiAPIKey:  baseConfig.GeminiAPIKey,
		MaxImageBytes: baseConfig.MaxImageBytes,
	}

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中持久化的凭证，但使用最新的基础配置
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.BackupDir = baseConfig.BackupDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode
				if savedConfig.MaxImageBytes <= 0 {
					savedConfig.MaxImageBytes = baseConfig.MaxImageBytes
				}

				// 如果文件中没有凭证，使用环境变量的凭证
				if savedConfig.GeminiAPIKey == "" {
					savedConfig.GeminiAPIKey = baseConfig.GeminiAPIKey
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return saveConfigLocked()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return &AppConfig{
			Port:          baseConfig.Port,
			DataDir:       baseConfig.DataDir,
			BackupDir:     baseConfig.BackupDir,
			LogDir:        baseConfig.LogDir,
			DebugMode:     baseConfig.DebugMode,
			GeminiAPIKey:  baseConfig.GeminiAPIKey,
			MaxImageBytes: baseConfig.MaxImageBytes,
		}
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// GetAPIKey 读取当前持久化的生成服务凭证
func GetAPIKey() string {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		return ""
	}
	return currentConfig.GeminiAPIKey
}

// UpdateAPIKey 更新生成服务凭证并立即持久化
// 传入空字符串表示清除凭证（omitempty 使其从配置文件中整体消失）
func UpdateAPIKey(apiKey string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	currentConfig.GeminiAPIKey = apiKey

	return saveConfigLocked()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	configMutex.Lock()
	defer configMutex.Unlock()

	return saveConfigLocked()
}

// saveConfigLocked 持有锁的前提下写配置文件
func saveConfigLocked() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	// 序列化并保存
	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
