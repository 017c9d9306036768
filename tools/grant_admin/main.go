package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vst-portal/config"
	"vst-portal/internal/model"
	"vst-portal/internal/repository"
	dbPkg "vst-portal/pkg/db"
)

// 用法: go run ./tools/grant_admin -email admin@example.com
func main() {
	email := flag.String("email", "", "要授予管理员角色的用户邮箱")
	flag.Parse()

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	conn, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer func() { _ = dbPkg.CloseDB() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users := repository.NewUserRepository(conn)
	roles := repository.NewRoleRepository(conn)

	if err := roles.EnsureRoles(ctx); err != nil {
		log.Fatalf("Seed roles failed: %v", err)
	}

	user, err := users.GetByEmail(ctx, *email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Fatalf("User %s not found", *email)
		}
		log.Fatalf("Lookup user failed: %v", err)
	}

	if err := roles.Assign(ctx, user.ID, model.RoleAdmin); err != nil {
		log.Fatalf("Grant admin failed: %v", err)
	}

	names, err := roles.RolesOf(ctx, user.ID)
	if err != nil {
		log.Fatalf("Load roles failed: %v", err)
	}
	fmt.Printf("User %s (id=%d) roles: %v\n", user.Email, user.ID, names)
}
