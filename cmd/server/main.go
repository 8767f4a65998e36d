package main

import (
	"fmt"
	"os"
)

// @title Fitness Coach API
// @version 1.0
// @description Training plans, routines, executions and diaries for trainers and their clients.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
