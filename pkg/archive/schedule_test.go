package archive

import (
	"strings"
	"testing"
)

func TestScheduleArtifactsLinux(t *testing.T) {
	p := Policy{Destination: "/var/lib/fieldline/archive", Schedule: "*-*-* 02:00:00"}
	files := ScheduleArtifacts(p, "linux")

	if len(files) != 2 {
		t.Fatalf("expected service + timer, got %d files", len(files))
	}
	var timer string
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".timer") {
			timer = f.Contents
		}
	}
	if !strings.Contains(timer, "OnCalendar=*-*-* 02:00:00") {
		t.Errorf("timer unit missing the schedule expression:\n%s", timer)
	}
}

func TestScheduleArtifactsPerPlatform(t *testing.T) {
	p := Policy{Destination: "/archives", Schedule: "daily"}

	tests := []struct {
		goos  string
		count int
		mark  string
	}{
		{"linux", 2, "[Timer]"},
		{"darwin", 1, "<plist"},
		{"windows", 1, "<Task"},
	}
	for _, tt := range tests {
		files := ScheduleArtifacts(p, tt.goos)
		if len(files) != tt.count {
			t.Errorf("%s: %d files, want %d", tt.goos, len(files), tt.count)
			continue
		}
		var all strings.Builder
		for _, f := range files {
			all.WriteString(f.Contents)
		}
		if !strings.Contains(all.String(), tt.mark) {
			t.Errorf("%s artifacts missing marker %q", tt.goos, tt.mark)
		}
	}
}
