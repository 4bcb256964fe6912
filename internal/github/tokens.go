package github

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

func ReadTokenFile(path string) ([]string, error) {
	tokens, err := readListFile(path)
	if err != nil {
		return nil, fmt.Errorf("token file: %w", err)
	}
	return tokens, nil
}

func ReadProxyFile(path string) ([]string, error) {
	proxies, err := readListFile(path)
	if err != nil {
		return nil, fmt.Errorf("proxy file: %w", err)
	}
	for i, line := range proxies {
		if !strings.Contains(line, "://") {
			proxies[i] = "http://" + line
		}
	}
	return proxies, nil
}

// readListFile returns the non-empty, non-comment lines of a file.
func readListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	return lines, nil
}
