package archive

import "fmt"

// ScheduleFile is one platform-specific schedule placeholder artifact.
type ScheduleFile struct {
	// Name is the file name, relative to the schedule directory.
	Name string

	// Contents is the unit/plist/task text.
	Contents string
}

// ScheduleArtifacts renders the schedule placeholder files for the given
// platform. These are placeholders: the installer records policy, the OS
// service-manager collaborator installs and enables them.
func ScheduleArtifacts(p Policy, goos string) []ScheduleFile {
	switch goos {
	case "darwin":
		return []ScheduleFile{{
			Name: "com.fieldline.archive.plist",
			Contents: fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>com.fieldline.archive</string>
	<key>ProgramArguments</key>
	<array>
		<string>/usr/local/bin/fieldline</string>
		<string>verify-archive</string>
		<string>--apply</string>
	</array>
	<key>StartCalendarInterval</key>
	<dict>
		<key>Hour</key>
		<integer>2</integer>
	</dict>
	<key>StandardOutPath</key>
	<string>%s/archive.log</string>
</dict>
</plist>
`, p.Destination),
		}}

	case "windows":
		return []ScheduleFile{{
			Name: "fieldline-archive.task.xml",
			Contents: fmt.Sprintf(`<?xml version="1.0" encoding="UTF-16"?>
<Task version="1.2" xmlns="http://schemas.microsoft.com/windows/2004/02/mit/task">
  <Triggers>
    <CalendarTrigger>
      <StartBoundary>2000-01-01T02:00:00</StartBoundary>
      <ScheduleByDay><DaysInterval>1</DaysInterval></ScheduleByDay>
    </CalendarTrigger>
  </Triggers>
  <Actions>
    <Exec>
      <Command>fieldline.exe</Command>
      <Arguments>verify-archive --apply</Arguments>
      <WorkingDirectory>%s</WorkingDirectory>
    </Exec>
  </Actions>
</Task>
`, p.Destination),
		}}

	default: // linux and everything systemd-shaped
		return []ScheduleFile{
			{
				Name: "fieldline-archive.service",
				Contents: fmt.Sprintf(`[Unit]
Description=Fieldline scheduled archive pass
After=network-online.target

[Service]
Type=oneshot
ExecStart=/usr/local/bin/fieldline verify-archive --apply
WorkingDirectory=%s
`, p.Destination),
			},
			{
				Name: "fieldline-archive.timer",
				Contents: fmt.Sprintf(`[Unit]
Description=Fieldline archive schedule

[Timer]
OnCalendar=%s
Persistent=true

[Install]
WantedBy=timers.target
`, p.Schedule),
			},
		}
	}
}
