package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DotEnvFile is the optional environment file read from the working directory.
const DotEnvFile = ".env"

// LoadDotEnv loads DotEnvFile into the process environment when present.
// Variables already set in the environment win over the file.
func LoadDotEnv() error {
	if _, err := os.Stat(DotEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", DotEnvFile, err)
	}
	if err := godotenv.Load(DotEnvFile); err != nil {
		return fmt.Errorf("load %s: %w", DotEnvFile, err)
	}
	return nil
}
