package redis

import (
	"testing"

	"bimcloud-demo/internal/config"
)

func TestOptions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		addr     string
		password string
		db       int
		wantErr  bool
	}{
		{
			name:     "host and port",
			cfg:      config.RedisConfig{URL: "cache:6379", Password: "pw", DB: 3},
			addr:     "cache:6379",
			password: "pw",
			db:       3,
		},
		{
			name:     "url carries credentials and db",
			cfg:      config.RedisConfig{URL: "redis://:secret@localhost:6380/2"},
			addr:     "localhost:6380",
			password: "secret",
			db:       2,
		},
		{
			name:     "explicit settings win over url",
			cfg:      config.RedisConfig{URL: "redis://:secret@localhost:6380/2", Password: "override", DB: 5},
			addr:     "localhost:6380",
			password: "override",
			db:       5,
		},
		{
			name:    "bad db in url",
			cfg:     config.RedisConfig{URL: "redis://localhost:6379/notanumber"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts, err := options(&tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", opts)
				}
				return
			}
			if err != nil {
				t.Fatalf("options: %v", err)
			}
			if opts.Addr != tt.addr || opts.Password != tt.password || opts.DB != tt.db {
				t.Fatalf("got addr=%q password=%q db=%d", opts.Addr, opts.Password, opts.DB)
			}
		})
	}
}
