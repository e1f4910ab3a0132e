// Package env contains environment variables
/*
 * Copyright (c) 2024-2025, NVIDIA CORPORATION. All rights reserved.
 */
package env

var (
	RatMQ = struct {
		BrokerAddr string
		AdminAddr  string
		QueueCap   string
		LogFile    string
		Verbose    string
	}{
		// listening endpoints
		BrokerAddr: "RATMQ_BROKER_ADDR", // framed-XML wire (default :5672)
		AdminAddr:  "RATMQ_ADMIN_ADDR",  // read-only HTTP surface (default :3000)

		// sizing
		QueueCap: "RATMQ_QUEUE_CAP", // queue capacity hint (default 10000)

		// logging
		LogFile: "RATMQ_LOG_FILE",
		Verbose: "RATMQ_LOG_VERBOSE",
	}
)
