package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"vst-portal/config"
	dbPkg "vst-portal/pkg/db"
	"vst-portal/pkg/migrate"
)

// 用法: go run ./cmd/migrate [up|down|status|version|redo|reset]
func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg := config.LoadConfig()
	if cfg.Database.Driver != "" && cfg.Database.Driver != "mysql" {
		fmt.Fprintf(os.Stderr, "迁移脚本仅支持 mysql，当前驱动: %s（其他驱动使用 autoMigrate）\n", cfg.Database.Driver)
		os.Exit(1)
	}

	db, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "数据库连接失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = dbPkg.CloseDB() }()

	sqlDB, err := db.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取数据库实例失败: %v\n", err)
		os.Exit(1)
	}

	if err := migrate.Run(context.Background(), sqlDB, command, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("迁移命令 %s 执行完成\n", command)
}
