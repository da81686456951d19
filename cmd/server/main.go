package main

import (
	"github.com/eleven-am/verse-backend/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
