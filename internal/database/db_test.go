package database

import "testing"

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		user string
		pass string
		want string
	}{
		{
			"with password",
			"app", "s3cret",
			"app:s3cret@tcp(db:3306)/booking?charset=utf8mb4&parseTime=true&loc=UTC",
		},
		{
			"empty password omits separator",
			"root", "",
			"root@tcp(db:3306)/booking?charset=utf8mb4&parseTime=true&loc=UTC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dsn(tt.user, tt.pass, "db", "3306", "booking")
			if got != tt.want {
				t.Errorf("dsn = %q, want %q", got, tt.want)
			}
		})
	}
}
