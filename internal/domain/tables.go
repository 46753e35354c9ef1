package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOprLog{},
	// Metrics
	&MetricSnapshot{},
}
