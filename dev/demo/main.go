package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"

	"github.com/mqy/minichat/chatstore"
	"github.com/mqy/minichat/feed"
	"github.com/mqy/minichat/store"
)

// The demo mocks chatty users: it inserts messages into mysql, the message store publishes
// every insert to kafka so running minichat consoles see them live.

// kafka-topics.sh --bootstrap-server localhost:9092 --topic minichat-messages --create --partitions 1
// kafka-topics.sh --bootstrap-server localhost:9092 --topic minichat-messages --delete

var (
	mysqlDsn       = flag.String("mysql-dsn", "root:@tcp(127.0.0.1:3306)/minichat?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci", "mysql server dsn")
	kafkaBrokers   = flag.String("kafka-brokers", "127.0.0.1:9092", "kafka brokers, ',' delimitted.")
	kafkaTopic     = flag.String("kafka-topic", "minichat-messages", "kafka topic")
	authors        = flag.String("authors", "bot1,bot2", "comma separated author user ids")
	scopes         = flag.String("scopes", "global", "comma separated target chats: global, personal:<uid>, group:<gid>")
	tickerDuration = flag.Duration("ticker-duration", 5*time.Second, "ticker duration")
)

// parseScope parses a target chat. A personal chat is between the author and uid.
func parseScope(s, author string) (chatstore.Scope, error) {
	kind, id := s, ""
	if i := strings.IndexByte(s, ':'); i >= 0 {
		kind, id = s[:i], s[i+1:]
	}
	switch chatstore.ChatKind(kind) {
	case chatstore.ChatKind_Global:
		return chatstore.GlobalScope(), nil
	case chatstore.ChatKind_Personal:
		if id == "" {
			return chatstore.Scope{}, fmt.Errorf("personal chat: uid required")
		}
		return chatstore.PersonalScope(author, id), nil
	case chatstore.ChatKind_Group:
		if id == "" {
			return chatstore.Scope{}, fmt.Errorf("group chat: group id required")
		}
		return chatstore.GroupScope(id), nil
	}
	return chatstore.Scope{}, fmt.Errorf("unknown chat `%s`", s)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	if *kafkaBrokers == "" {
		glog.Error("--kafka-brokers is required.")
		os.Exit(1)
	}
	authorIds := strings.Split(*authors, ",")
	targets := strings.Split(*scopes, ",")
	for _, t := range targets {
		if _, err := parseScope(t, authorIds[0]); err != nil {
			glog.Errorf("--scopes: %v", err)
			os.Exit(1)
		}
	}

	db, err := sql.Open("mysql", *mysqlDsn)
	if err != nil {
		glog.Errorf("sql.Open error: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	pub := feed.NewKafkaPublisher(feed.NewKafkaWriter(strings.Split(*kafkaBrokers, ","), *kafkaTopic), 0)
	defer pub.Close()
	messages := store.NewMessageStore(db, pub)

	ticker := time.NewTicker(*tickerDuration)
	defer ticker.Stop()

	var i int
	for range ticker.C {
		author := authorIds[i%len(authorIds)]
		scope, _ := parseScope(targets[i%len(targets)], author)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rec, err := messages.InsertMessage(ctx, &store.InsertReq{
			Scope:    scope,
			AuthorId: author,
			Text:     fmt.Sprintf("hello #%d from %s", i, author),
		})
		cancel()
		if err != nil {
			glog.Errorf("insert error: %v", err)
		} else {
			glog.Infof("inserted %s into %s", rec.Id, scope)
		}
		i++
	}
}
