package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
}

type MongoConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Host     string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:"qrshare"`
}

// CatalogConfig points at the external MySQL document catalog.
type CatalogConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	HostName string `yaml:"host" env-default:"localhost"`
	Port     string `yaml:"port" env-default:"3306"`
	UserName string `yaml:"user" env-default:""`
	Password string `yaml:"password" env-default:""`
	Database string `yaml:"database" env-default:""`
	Prefix   string `yaml:"prefix" env-default:""`
}

type TelegramConfig struct {
	Enabled        bool   `yaml:"enabled" env-default:"false"`
	ApiKey         string `yaml:"api_key" env-default:""`
	ApproverChatId int64  `yaml:"approver_chat_id" env-default:"0"`
	AlertChatId    int64  `yaml:"alert_chat_id" env-default:"0"`
}

// SignerKey is one versioned signing secret. The first key in the list
// signs; every listed key verifies. Rotation: prepend the new key, keep
// the old one until all live bundles are re-signed.
type SignerKey struct {
	Version string `yaml:"version"`
	Secret  string `yaml:"secret"`
}

type SignerConfig struct {
	Keys []SignerKey `yaml:"keys"`
}

type StorageConfig struct {
	BaseURL     string `yaml:"base_url" env-default:"http://localhost:8080"`
	QRImageDir  string `yaml:"qr_image_dir" env-default:"./qr-images"`
	QRImageBase string `yaml:"qr_image_base" env-default:"http://localhost:8080/images"`
}

type Config struct {
	Mongo    MongoConfig    `yaml:"mongo"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Telegram TelegramConfig `yaml:"telegram"`
	Signer   SignerConfig   `yaml:"signer"`
	Storage  StorageConfig  `yaml:"storage"`
	Listen   Listen         `yaml:"listen"`
	Env      string         `yaml:"env" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
