// Package config는 애플리케이션 설정을 관리하는 패키지입니다.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 인터페이스는 설정 값에 액세스하기 위한 메서드를 정의합니다.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringMap(key string) map[string]interface{}
	GetAll() map[string]interface{}
	// Unmarshal 전체 설정을 구조체로 디코딩합니다 (mapstructure 태그 사용).
	Unmarshal(rawVal interface{}) error
}

// viperConfig는 viper를 사용하여 Config 인터페이스를 구현합니다.
type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *viperConfig) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *viperConfig) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *viperConfig) GetStringMap(key string) map[string]interface{} {
	return c.v.GetStringMap(key)
}

func (c *viperConfig) GetAll() map[string]interface{} {
	return c.v.AllSettings()
}

func (c *viperConfig) Unmarshal(rawVal interface{}) error {
	return c.v.Unmarshal(rawVal)
}

// 설정 디렉토리 경로
const configDir = "configs"

// Load는 지정된 서비스 이름에 해당하는 설정 파일을 로드합니다.
// CONFIG_PATH가 파일을 가리키면 그 파일을, 디렉토리를 가리키면 {dir}/{service}.yaml을 읽습니다.
// 환경 변수 {SERVICE}_{KEY} 가 파일 값을 덮어씁니다 (예: SYNC_DATABASE_PASSWORD).
func Load(serviceName string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 환경 변수 바인딩 설정
	v.SetEnvPrefix(strings.ToUpper(serviceName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" && filepath.Ext(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
		}
		return &viperConfig{v: v}, nil
	}

	if configPath == "" {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "dev" // 기본 환경은 dev
		}
		configPath = filepath.Join(configDir, env)
	}

	v.SetConfigName(serviceName)
	v.AddConfigPath(configPath)
	v.AddConfigPath(configDir)
	// configs/example 디렉토리의 예제 설정 파일을 마지막으로 시도
	v.AddConfigPath(filepath.Join(configDir, "example"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("설정 파일 로드 실패: %w", err)
	}

	return &viperConfig{v: v}, nil
}
