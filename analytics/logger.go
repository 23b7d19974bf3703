package analytics

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogFileDataCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewLogFileDataCollector(fileName string) (*LogFileDataCollector, error) {
	enccoderConfig := zap.NewProductionEncoderConfig()
	enccoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	enccoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(enccoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel))
	return &LogFileDataCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}, nil
}

func (lc *LogFileDataCollector) RecordNodeSuccess(flowId string, sessionId string, nodeId string, componentType string, data map[string]any) {
	lc.logger.Info("success", zap.String("flow", flowId), zap.String("session", sessionId), zap.String("node", nodeId), zap.String("component", componentType), zap.Any("data", data))
}

func (lc *LogFileDataCollector) RecordNodeFailure(flowId string, sessionId string, nodeId string, componentType string, reason string) {
	lc.logger.Info("failure", zap.String("flow", flowId), zap.String("session", sessionId), zap.String("node", nodeId), zap.String("component", componentType), zap.String("reason", reason))
}
