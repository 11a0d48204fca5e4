package main

import (
	"flag"
	"log"
	"log/slog"
	"path/filepath"

	"qrshare/impl/auth"
	"qrshare/impl/core"
	"qrshare/impl/signer"
	"qrshare/internal/catalog"
	"qrshare/internal/config"
	"qrshare/internal/database"
	"qrshare/internal/http-server/api"
	"qrshare/internal/notify"
	"qrshare/internal/qrimage"
	"qrshare/lib/logger"
	"qrshare/lib/sl"
)

const logFileName = "qrshare.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting qrshare", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)
	if db == nil {
		log.Fatal("mongo storage must be enabled")
	}

	keys := make([]signer.Key, 0, len(conf.Signer.Keys))
	for _, k := range conf.Signer.Keys {
		keys = append(keys, signer.Key{Version: k.Version, Secret: k.Secret})
	}
	sig, err := signer.New(keys)
	if err != nil {
		log.Fatal("signature service: ", err)
	}

	blobs, err := qrimage.NewLocalStore(conf.Storage.QRImageDir, conf.Storage.QRImageBase)
	if err != nil {
		log.Fatal("qr image store: ", err)
	}

	var tg *notify.Telegram
	if conf.Telegram.Enabled {
		tg, err = notify.NewTelegram(conf, lg)
		if err != nil {
			lg.Error("telegram notifier", sl.Err(err))
		} else {
			lg = logger.WithAlerts(lg, tg, slog.LevelWarn)
		}
	}

	c := core.New(db, sig, qrimage.New(blobs), conf.Storage.BaseURL, lg)
	c.SetAuthService(auth.New(db))
	if tg != nil {
		c.SetNotifier(tg)
	}

	if conf.Catalog.Enabled {
		cat, catErr := catalog.NewSQLClient(conf)
		if catErr != nil {
			log.Fatal("document catalog: ", catErr)
		}
		defer cat.Close()
		c.SetCatalog(cat)
	}

	if err = api.New(conf, lg, c); err != nil {
		lg.Error("api server stopped", sl.Err(err))
	}
}
