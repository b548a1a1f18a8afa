package config

import (
    "os"
    "github.com/joho/godotenv"
)

type Config struct {
    SupabaseURL string
    SupabaseKey string
    StorePath   string
}

func LoadConfig() (*Config, error) {
    if err := godotenv.Load(); err != nil {
        return nil, err
    }

    cfg := &Config{
        SupabaseURL: os.Getenv("SUPABASE_URL"),
        SupabaseKey: os.Getenv("SUPABASE_KEY"),
        StorePath:   os.Getenv("WALLA_STORE_PATH"),
    }
    if cfg.StorePath == "" {
        cfg.StorePath = "walla.db"
    }
    return cfg, nil
}
