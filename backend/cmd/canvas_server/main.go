package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"canvasServer/backend/internal/board"
	"canvasServer/backend/internal/cache"
	"canvasServer/backend/internal/httpapi/handlers"
	"canvasServer/backend/internal/httpapi/middleware"
	"canvasServer/backend/internal/store"
	"canvasServer/backend/internal/ws"
)

type CanvasConfig struct {
	Running struct {
		Port int `mapstructure:"Port"`
	} `mapstructure:"Running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"Mysql"`
	Redis struct {
		Addrs    []string `mapstructure:"addrs"`
		Password string   `mapstructure:"password"`
	} `mapstructure:"Redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"Kafka"`
	Auth struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"Auth"`
	Compact struct {
		IntervalSeconds int `mapstructure:"intervalSeconds"`
	} `mapstructure:"Compact"`
}

func initConfig() (*CanvasConfig, error) {
	cfg := &CanvasConfig{}
	v := viper.New()
	v.SetConfigName("canvasConfig")
	v.SetConfigType("yaml")
	// 兼容从项目根目录或 backend 目录启动
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)

	rdb := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:    cfg.Redis.Addrs,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	dsn := cfg.Mysql.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// boards 表走 gorm（含建表），快照走 database/sql
	gormDB, err := store.InitMySQL(dsn)
	if err != nil {
		log.Fatalf("Failed to init gorm: %v", err)
	}

	// === 初始化 Kafka Producer ===
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	presenceCache := cache.NewRedisPresence(rdb)
	hub := ws.NewHub(presenceCache)
	snapshotStore := store.NewSnapshotStore(db)
	boardStore := store.NewBoardStore(gormDB)

	kafkaSem := board.NewSemaphoreControl(0)
	wsSem := board.NewSemaphoreControl(0)

	// Kafka 本地队列 + worker 重试发送
	kafkaDispatcher := board.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		board.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	svc := board.NewInMemoryService(snapshotStore, boardStore, kafkaDispatcher)
	// 后台压缩：有 clear 的画布日志被截断到最近一次 clear 之后
	interval := time.Duration(cfg.Compact.IntervalSeconds) * time.Second
	svc.StartCompaction(context.Background(), interval)

	manager := ws.NewManager(hub, svc, wsSem)
	boardHandler := handlers.NewBoardHandler(svc)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	canvasGroup := r.Group("/canvas")
	// 鉴权中间件：从 Authorization 或 ?token= 提取 token，调用 /v1/auth/verify，写入 userId/username
	canvasGroup.Use(middleware.AuthMiddleware(cfg.Auth.Path))
	canvasGroup.GET("/ws", manager.WebSocketConnect)
	canvasGroup.POST("/boards", boardHandler.CreateBoard)
	canvasGroup.GET("/boards/:docID", boardHandler.GetBoardState)
	canvasGroup.POST("/boards/:docID/save", boardHandler.SaveBoard)
	canvasGroup.POST("/boards/:docID/restore", boardHandler.RestoreBoard)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok"})
	})

	port := cfg.Running.Port
	_ = r.Run(fmt.Sprintf(":%d", port))
}
