package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"

	"vst-portal/config"

	"github.com/go-sql-driver/mysql"
)

// 子表在前，roles 为种子数据保留
var tables = []string{
	"support_messages",
	"support_chats",
	"sessions",
	"user_roles",
	"licenses",
	"subscriptions",
	"users",
}

func main() {
	yes := flag.Bool("yes", false, "跳过确认")
	flag.Parse()

	cfg := config.LoadConfig()
	if cfg.Database.Driver != "" && cfg.Database.Driver != "mysql" {
		log.Fatalf("reset_db only supports mysql, got %q", cfg.Database.Driver)
	}

	dsn := buildDSN(cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Database connection test failed: %v", err)
	}

	fmt.Println("Database connected successfully")
	fmt.Printf("Database: %s\n", cfg.Database.Database)

	if !*yes {
		fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
		fmt.Print("Type 'YES' to confirm: ")
		var confirm string
		_, _ = fmt.Scanln(&confirm)
		if confirm != "YES" {
			fmt.Println("Operation cancelled")
			return
		}
	}

	_, _ = db.Exec("SET FOREIGN_KEY_CHECKS=0")
	defer func() { _, _ = db.Exec("SET FOREIGN_KEY_CHECKS=1") }()

	failed := 0
	for _, table := range tables {
		fmt.Printf("Clearing table %s... ", table)
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			failed++
			fmt.Printf("Failed: %v\n", err)
			continue
		}
		if _, err := db.Exec("ALTER TABLE " + table + " AUTO_INCREMENT = 1"); err != nil {
			fmt.Printf("Cleared, reset auto-increment failed: %v\n", err)
			continue
		}
		fmt.Println("Success")
	}

	if failed > 0 {
		log.Fatalf("Database reset finished with %d failed tables", failed)
	}
	fmt.Println("\nDatabase reset completed!")
	fmt.Println("Roles preserved, all account and support data cleared")
}

func buildDSN(c config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.ParseTime = true
	if c.Charset != "" {
		mc.Params = map[string]string{"charset": c.Charset}
	}
	return mc.FormatDSN()
}
