package storage

import (
	"os"
	"path/filepath"

	"github.com/go-jafka/jafka/types"
)

// Factory adapts NewLog/LoadLog into the logmanager.LogFactory shape:
// the sole collaborator a Manager uses to construct or recover a Log,
// keeping the manager itself free of any concrete storage import
// (spec §1, §4.1 rationale). recover selects LoadLog when the
// directory already exists on disk (the Loader's case) and NewLog
// otherwise (get_or_create_log's case).
func Factory(rootDir, topic string, partition types.PartitionIndex, recover bool, rolling types.RollingStrategy) (types.Log, error) {
	dir := filepath.Join(rootDir, types.FormatLogDirName(topic, partition))
	if recover {
		if _, err := os.Stat(dir); err == nil {
			return LoadLog(dir, topic, partition, rolling)
		}
	}
	return NewLog(rootDir, topic, partition, rolling)
}
