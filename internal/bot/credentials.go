package bot

import (
	"fmt"
	"os"
	"strings"
)

// CredentialsRepository 抽象API凭证的读取来源。
type CredentialsRepository interface {
	APIKey(personID, exchange string) (string, error)
	APISecret(personID, exchange string) (string, error)
}

// EnvCredentialsRepository 从环境变量读取凭证，
// 变量名形如 <PERSON>_<EXCHANGE>_API_KEY。
type EnvCredentialsRepository struct{}

func (EnvCredentialsRepository) APIKey(personID, exchange string) (string, error) {
	return lookupEnv(personID, exchange, "API_KEY")
}

func (EnvCredentialsRepository) APISecret(personID, exchange string) (string, error) {
	return lookupEnv(personID, exchange, "API_SECRET")
}

func lookupEnv(personID, exchange, suffix string) (string, error) {
	name := strings.ToUpper(fmt.Sprintf("%s_%s_%s", personID, exchange, suffix))
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("bot: 环境变量 %s 未设置", name)
	}
	return value, nil
}
