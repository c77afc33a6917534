package logging

import "github.com/soltixdb/tagwatch/internal/config"

func configForTest(level, format, output string) config.LoggingConfig {
	return config.LoggingConfig{
		Level:      level,
		Format:     format,
		OutputPath: output,
	}
}
