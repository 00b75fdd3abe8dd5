package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/stemsi/exampool/internal/config"
	"github.com/stemsi/exampool/internal/logger"
	"github.com/stemsi/exampool/internal/model"
	"github.com/stemsi/exampool/internal/service"
)

// issue-token mints a development JWT signed with JWT_SECRET.
//
//	issue-token -user u-123
//	issue-token -user ops -admin -perms exams:read,exams:write
func main() {
	var userID, perms string
	var admin bool
	flag.StringVar(&userID, "user", "", "Principal id carried in the token (required)")
	flag.BoolVar(&admin, "admin", false, "Issue an admin token")
	flag.StringVar(&perms, "perms", string(model.PermissionExamsRead), "Comma-separated permission codes")
	flag.Parse()

	cfg := config.Load()
	log := logger.Component(logger.Setup(cfg.LogLevel, cfg.LogFormat), "issue_token")

	if userID == "" {
		flag.Usage()
		log.Fatal().Msg("-user is required")
	}

	typ := service.TokenTypeUser
	if admin {
		typ = service.TokenTypeAdmin
	}

	token, err := service.NewAuthService(cfg).GenerateToken(userID, typ, splitPerms(perms))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().
		Str("user_id", userID).
		Str("type", string(typ)).
		Dur("expires_in", cfg.JWTExpiry).
		Msg("Token issued")
	fmt.Println(token)
}

func splitPerms(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
