package tele

type Config struct {
	Enabled      bool   `hcl:"enable"`
	LogDebug     bool   `hcl:"log_debug"`
	MqttBroker   string `hcl:"mqtt_broker"`
	ClientID     string `hcl:"client_id"`
	TopicPrefix  string `hcl:"topic_prefix"`
	KeepaliveSec int    `hcl:"keepalive_sec"`
	QueueSize    int    `hcl:"queue_size"`
}
