package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"time"

	"netsift/internal/analysis"
	"netsift/internal/models"
)

// GenerateSessionReport writes a report of the session's records into dir.
// Currently supports "html" format.
func GenerateSessionReport(dir string, records []models.TrafficRecord, format string) (string, error) {
	if format != "html" {
		return "", fmt.Errorf("unsupported format: %s", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("report_%s.html", timestamp))

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	stats := analysis.Summarize(records, 10)
	esc := html.EscapeString

	page := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>netsift Session Report - %s</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1, h2 { color: #2c3e50; }
        table { width: 100%%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .Red { color: #d9534f; font-weight: bold; }
        .Green { color: #3c763d; font-weight: bold; }
    </style>
</head>
<body>
    <h1>netsift Session Report</h1>
    <div class="summary">
        <p><strong>Date:</strong> %s</p>
        <p><strong>Records:</strong> %d (%d with a domain)</p>
        <p><strong>Packets:</strong> %d</p>
    </div>

    <h2>Traffic Types</h2>
    <table>
        <thead>
            <tr>
                <th>Type</th>
                <th>Records</th>
            </tr>
        </thead>
        <tbody>
`, timestamp, time.Now().Format(time.RFC1123), stats.Records, stats.Resolved, stats.Packets)

	for _, l := range stats.Labels {
		page += fmt.Sprintf("            <tr><td>%s</td><td>%d</td></tr>\n", esc(l.Label), l.Count)
	}

	page += `        </tbody>
    </table>

    <h2>Top 10 Talkers</h2>
    <table>
        <thead>
            <tr>
                <th>Address</th>
                <th>Domain</th>
                <th>Protocol</th>
                <th>Packets</th>
            </tr>
        </thead>
        <tbody>
`
	for _, r := range stats.TopTalkers {
		page += fmt.Sprintf("            <tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td></tr>\n",
			esc(r.RemoteAddress), esc(r.Domain), esc(r.Protocol), r.PacketCount)
	}

	page += `        </tbody>
    </table>

    <h2>Records</h2>
    <table>
        <thead>
            <tr>
                <th>First Seen</th>
                <th>Process</th>
                <th>Address</th>
                <th>Domain</th>
                <th>Protocol</th>
                <th>Packets</th>
                <th>Type</th>
                <th>Provider</th>
                <th>Geo</th>
                <th>Status</th>
            </tr>
        </thead>
        <tbody>
`

	if len(records) == 0 {
		page += "            <tr><td colspan=\"10\">No traffic captured.</td></tr>\n"
	} else {
		for _, r := range records {
			page += fmt.Sprintf("            <tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td class=\"%s\">%s</td></tr>\n",
				r.FirstSeen.Format("15:04:05"), esc(r.ProcessName), esc(r.RemoteAddress), esc(r.Domain),
				esc(r.Protocol), r.PacketCount, esc(r.TrafficType), esc(r.ProviderName), esc(r.GeoLocation),
				esc(r.StatusColor), esc(r.Status))
		}
	}

	page += `        </tbody>
    </table>
</body>
</html>`

	if _, err := file.WriteString(page); err != nil {
		return "", err
	}
	return filename, nil
}
