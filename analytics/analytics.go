package analytics

type DataCollectorConfig struct {
	FileName      string
	CollectorType DataCollectorType
}

type DataCollectorType string

const LOG_FILE_DATA_COLLECTOR DataCollectorType = "LOG_FILE_DATA_COLLECTOR"
const NOOP_DATA_COLLECTOR DataCollectorType = "NOOP_DATA_COLLECTOR"

type SessionDataCollector interface {
	RecordNodeSuccess(flowId string, sessionId string, nodeId string, componentType string, data map[string]any)
	RecordNodeFailure(flowId string, sessionId string, nodeId string, componentType string, reason string)
}

var sessionCollector SessionDataCollector = noopCollector{}

func InitDataCollector(config DataCollectorConfig) error {
	switch config.CollectorType {
	case LOG_FILE_DATA_COLLECTOR:
		c, err := NewLogFileDataCollector(config.FileName)
		if err != nil {
			return err
		}
		sessionCollector = c
	default:
		sessionCollector = noopCollector{}
	}
	return nil
}

func RecordNodeSuccess(flowId string, sessionId string, nodeId string, componentType string, data map[string]any) {
	sessionCollector.RecordNodeSuccess(flowId, sessionId, nodeId, componentType, data)
}

func RecordNodeFailure(flowId string, sessionId string, nodeId string, componentType string, reason string) {
	sessionCollector.RecordNodeFailure(flowId, sessionId, nodeId, componentType, reason)
}

type noopCollector struct{}

func (noopCollector) RecordNodeSuccess(string, string, string, string, map[string]any) {}
func (noopCollector) RecordNodeFailure(string, string, string, string, string)         {}
