package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// One-off maintenance: flips past-due OPEN predictions to LOCKED and reports
// any prediction whose total pool disagrees with its stakes or outcome pools.
// Run with: go run scripts/audit_pools.go
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	result, err := db.Exec(`
		UPDATE predictions
		SET status = 'LOCKED', updated_at = NOW()
		WHERE status = 'OPEN' AND locks_at <= NOW()
	`)
	if err != nil {
		log.Fatal("Failed to sweep locks:", err)
	}
	swept, _ := result.RowsAffected()
	fmt.Printf("Locked %d past-due predictions\n", swept)

	rows, err := db.Query(`
		SELECT p.id, p.total_pool::numeric(20,3),
		       COALESCE((SELECT SUM(o.pool) FROM outcomes o WHERE o.prediction_id = p.id), 0)::numeric(20,3),
		       COALESCE((SELECT SUM(s.amount) FROM stakes s WHERE s.prediction_id = p.id), 0)::numeric(20,3)
		FROM predictions p
	`)
	if err != nil {
		log.Fatal("Failed to query pools:", err)
	}
	defer rows.Close()

	mismatches := 0
	for rows.Next() {
		var id, totalPool, outcomeSum, stakeSum string
		if err := rows.Scan(&id, &totalPool, &outcomeSum, &stakeSum); err != nil {
			log.Fatal("Failed to scan row:", err)
		}
		if totalPool != outcomeSum || totalPool != stakeSum {
			mismatches++
			fmt.Printf("MISMATCH %s: total=%s outcomes=%s stakes=%s\n", id, totalPool, outcomeSum, stakeSum)
		}
	}
	if err := rows.Err(); err != nil {
		log.Fatal("Failed reading rows:", err)
	}

	if mismatches == 0 {
		fmt.Println("All pools balance")
	} else {
		fmt.Printf("%d predictions out of balance\n", mismatches)
	}
}
