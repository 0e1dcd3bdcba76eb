package app

import (
	"testing"
	"time"
)

func TestEnvCSV(t *testing.T) {
	cases := []struct {
		name string
		val  string
		def  string
		want []string
	}{
		{name: "unset uses default", val: "", def: "http://localhost,http://127.0.0.1", want: []string{"http://localhost", "http://127.0.0.1"}},
		{name: "single", val: "https://app.example.com", def: "", want: []string{"https://app.example.com"}},
		{name: "trims and drops empties", val: " a , , b ,", def: "", want: []string{"a", "b"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if tc.val != "" {
				t.Setenv("REVSYNC_TEST_CSV", tc.val)
			}
			got := EnvCSV("REVSYNC_TEST_CSV", tc.def)
			if len(got) != len(tc.want) {
				t.Fatalf("EnvCSV=%v want=%v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("EnvCSV[%d]=%q want=%q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("REVSYNC_TEST_INT", "not-a-number")
	t.Setenv("REVSYNC_TEST_BOOL", "maybe")
	t.Setenv("REVSYNC_TEST_DUR", "-5s")

	if got := EnvInt("REVSYNC_TEST_INT", 42); got != 42 {
		t.Fatalf("EnvInt=%d want=42", got)
	}
	if got := EnvBool("REVSYNC_TEST_BOOL", true); got != true {
		t.Fatalf("EnvBool=%v want=true", got)
	}
	if got := EnvDuration("REVSYNC_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration=%v want=1m", got)
	}
}

func TestEnvHelpersParseValues(t *testing.T) {
	t.Setenv("REVSYNC_TEST_INT", "7")
	t.Setenv("REVSYNC_TEST_INT32", "12")
	t.Setenv("REVSYNC_TEST_DUR", "90s")

	if got := EnvInt("REVSYNC_TEST_INT", 1); got != 7 {
		t.Fatalf("EnvInt=%d want=7", got)
	}
	if got := EnvInt32("REVSYNC_TEST_INT32", 1); got != 12 {
		t.Fatalf("EnvInt32=%d want=12", got)
	}
	if got := EnvDuration("REVSYNC_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v want=90s", got)
	}
}
