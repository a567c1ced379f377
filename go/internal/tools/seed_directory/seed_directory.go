package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/familypark/playzone/go/internal/dbconfig"
)

// Local mirrors the JSON seed structure: one venue with its operators and
// zone codes.
type Local struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	ZoneType  string   `json:"zone_type"`
	Zones     []string `json:"zones"`
	Operators []struct {
		Name      string `json:"name"`
		LoginCode string `json:"login_code"`
	} `json:"operators"`
}

func main() {
	path := "go/internal/assets/locals.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read JSON: %v\n", err)
		os.Exit(1)
	}
	var locals []Local
	if err := json.Unmarshal(data, &locals); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal JSON: %v\n", err)
		os.Exit(1)
	}

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx := context.Background()
	var errs int
	for _, l := range locals {
		var localID string
		err := pool.QueryRow(ctx, `
            INSERT INTO locals (code, name, zone_type)
            VALUES ($1, $2, $3)
            ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, zone_type = EXCLUDED.zone_type
            RETURNING id
        `, l.Code, l.Name, l.ZoneType).Scan(&localID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error upserting local %s: %v\n", l.Code, err)
			errs++
			continue
		}

		for _, zone := range l.Zones {
			if _, err := pool.Exec(ctx, `
                INSERT INTO local_zones (local_id, zone_code)
                VALUES ($1, $2)
                ON CONFLICT DO NOTHING
            `, localID, zone); err != nil {
				fmt.Fprintf(os.Stderr, "error inserting zone %s/%s: %v\n", l.Code, zone, err)
				errs++
			}
		}

		for _, op := range l.Operators {
			if _, err := pool.Exec(ctx, `
                INSERT INTO operators (name, login_code, local_id, active)
                VALUES ($1, $2, $3, TRUE)
                ON CONFLICT (local_id, login_code) DO UPDATE SET name = EXCLUDED.name, active = TRUE
            `, op.Name, op.LoginCode, localID); err != nil {
				fmt.Fprintf(os.Stderr, "error upserting operator %s/%s: %v\n", l.Code, op.LoginCode, err)
				errs++
			}
		}

		fmt.Printf("seeded local %s (%d zones, %d operators)\n", l.Code, len(l.Zones), len(l.Operators))
	}

	if errs > 0 {
		fmt.Fprintf(os.Stderr, "finished with %d errors\n", errs)
		os.Exit(1)
	}
}
