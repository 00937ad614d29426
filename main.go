package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mqy/minichat/auth"
	"github.com/mqy/minichat/cache"
	"github.com/mqy/minichat/chat"
	"github.com/mqy/minichat/feed"
	"github.com/mqy/minichat/store"
)

const (
	feedKafka = "kafka"
	feedWs    = "ws"
)

var (
	flagUserId   = flag.String("user-id", "", "signed in user id")
	flagUserName = flag.String("user-name", "", "signed in user display name")

	flagMysqlDsn  = flag.String("mysql-dsn", "root:@tcp(127.0.0.1:3306)/minichat?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci", "mysql server dsn")
	flagCacheFile = flag.String("cache-file", "minichat-cache.db", "local message cache file")

	flagFeed         = flag.String("feed", feedKafka, "live feed transport: kafka or ws")
	flagKafkaBrokers = flag.String("kafka-brokers", "127.0.0.1:9092", "comma separated kafka brokers")
	flagKafkaTopic   = flag.String("kafka-topic", "minichat-messages", "kafka topic of message inserts")
	flagWsUrl        = flag.String("ws-url", "ws://127.0.0.1:8000/feed", "websocket feed url")

	flagCallTimeout = flag.Duration("call-timeout", 10*time.Second, "timeout of one backend call")

	flagPidFile        = flag.String("pid-file", "minichat.pid", "pid file")
	flagPprofDir       = flag.String("pprof-dir", "pprof", "dir to save pprof data files")
	flagProfiles       = flag.String("profiles", "cpu,mem,mutex,block", "comma separated profiles started by SIGUSR2")
	flagMetricsAddr    = flag.String("metrics-addr", "127.0.0.1:9100", "prometheus metrics address, ip:port")
	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	pid := os.Getpid()

	if err := savePid(*flagPidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(*flagPidFile)
	}()

	pprofDir := filepath.Join(*flagPprofDir, strconv.Itoa(pid))
	if err := os.MkdirAll(pprofDir, 0750); err != nil {
		return errorf("--pprof-dir: error create dir `%s`: %v", pprofDir, err)
	}
	defer func() {
		_ = os.RemoveAll(pprofDir)
	}()

	db, err := sql.Open("mysql", *flagMysqlDsn)
	if err != nil {
		return errorf("sql.Open error, dsn: %s, err: %v", *flagMysqlDsn, err)
	}
	defer db.Close()

	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(1)

	msgCache, err := cache.Open(*flagCacheFile)
	if err != nil {
		return errorf("--cache-file: %v", err)
	}
	defer msgCache.Close()
	if n := msgCache.SweepExpired(); n > 0 {
		glog.Infof("cache: swept %d expired entries", n)
	}

	blobs := store.NewBlobStore(db, chat.DefaultMaxFileBytes)

	authClient := auth.NewStaticClient(*flagUserId, *flagUserName)

	var (
		subscriber feed.ISubscriber
		publisher  store.IInsertPublisher
	)
	switch *flagFeed {
	case feedKafka:
		brokers := strings.Split(*flagKafkaBrokers, ",")
		kafkaSub := feed.NewKafkaSubscriber(feed.KafkaReaderFactory(brokers, *flagKafkaTopic), feed.DefaultValueMaxBytes)
		defer kafkaSub.Close()
		kafkaPub := feed.NewKafkaPublisher(feed.NewKafkaWriter(brokers, *flagKafkaTopic), feed.DefaultValueMaxBytes)
		defer kafkaPub.Close()
		subscriber, publisher = kafkaSub, kafkaPub
	case feedWs:
		// the websocket feed server fans out inserts itself.
		subscriber = feed.NewWsSubscriber(*flagWsUrl, authClient.Header())
	}

	if !*flagDisableMetrics {
		srv := newMetricsServer(*flagMetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				glog.Errorf("metrics server error: %v", err)
			}
		}()
		defer srv.Close()
	}

	console := newRepl(os.Stdout, *flagCallTimeout)
	session := chat.NewSession(chat.Config{
		Messages:       store.NewMessageStore(db, publisher),
		Groups:         store.NewGroupStore(db),
		Users:          store.NewUserDirectory(db),
		Blobs:          blobs,
		Feed:           subscriber,
		Cache:          msgCache,
		Auth:           authClient,
		OnMessages:     console.onMessages,
		OnNotification: console.onNotification,
	})
	console.session = session
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, *flagCallTimeout)
	err = session.Start(startCtx)
	startCancel()
	if err != nil {
		return errorf("session start error: %v", err)
	}

	replDone := make(chan error, 1)
	go func() {
		replDone <- console.run(ctx, os.Stdin)
	}()

	glog.Infof("minichat is started, user: %s", *flagUserId)
	glog.Infof("`kill -USR1 %d` to dup goroutines; `kill -USR2 %d` to start/stop profiler; `CTRL+c` or `kill %d` to stop", pid, pid, pid)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	kinds, _ := parseProfiles(*flagProfiles)
	var prof *Profiler
	defer func() {
		if prof != nil {
			prof.Stop()
		}
	}()

	for {
		select {
		case err := <-replDone:
			if err != nil {
				glog.Errorf("console error: %v", err)
			}
			glog.Info("minichat exited")
			return 0
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				dumpGoroutines(pprofDir)
			case syscall.SIGUSR2:
				if prof == nil {
					prof = StartProfiler(pprofDir, kinds...)
				} else {
					prof.Stop()
					prof = nil
				}
			case syscall.SIGTERM, syscall.SIGINT:
				glog.Infof("received signal `%s` stopping", sig.String())
				return 0
			}
		}
	}
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{},
	))
	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}
}

func validateFlags() int {
	if *flagUserId == "" {
		return errorf("--user-id is required")
	}
	if *flagUserName == "" {
		*flagUserName = *flagUserId
	}
	if *flagPidFile == "" {
		return errorf("--pid-file is required")
	}
	if *flagPprofDir == "" {
		return errorf("--pprof-dir is required")
	}
	if *flagMysqlDsn == "" {
		return errorf("--mysql-dsn is required")
	}
	if *flagCacheFile == "" {
		return errorf("--cache-file is required")
	}
	if *flagCallTimeout <= 0 {
		return errorf("--call-timeout must be positive")
	}

	switch *flagFeed {
	case feedKafka:
		if *flagKafkaBrokers == "" {
			return errorf("--kafka-brokers is required")
		}
		if *flagKafkaTopic == "" {
			return errorf("--kafka-topic is required")
		}
	case feedWs:
		if !strings.HasPrefix(*flagWsUrl, "ws://") && !strings.HasPrefix(*flagWsUrl, "wss://") {
			return errorf("--ws-url: expect ws:// or wss:// url, got `%s`", *flagWsUrl)
		}
	default:
		return errorf("--feed: unknown transport `%s`, expect %s or %s", *flagFeed, feedKafka, feedWs)
	}

	if _, err := parseProfiles(*flagProfiles); err != nil {
		return errorf("--profiles: %v", err)
	}

	if !*flagDisableMetrics {
		if err := validateAddr(*flagMetricsAddr); err != nil {
			return errorf("--metrics-addr: %v", err)
		}
	}
	return 0
}

func validateAddr(s string) error {
	ips, _, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("error split host port from `%s`: %v", s, err)
	}
	ip := net.ParseIP(ips)
	if ip == nil {
		return fmt.Errorf("error parse IP from host `%s`", ips)
	}
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("`%s` is not loopback or private address", ips)
	}
	return nil
}

func errorf(fmt string, args ...interface{}) int {
	glog.Errorf(fmt, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		content, err := ioutil.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(strings.TrimSpace(string(content)))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("exists with pid: %d, the process is running", oldPid)
			}
			glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat error: %v", err)
	}

	if err := ioutil.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("write error: %v", err)
	}
	return nil
}
