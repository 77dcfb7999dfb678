package tele

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/temoto/concentrator/helpers"
	"github.com/temoto/concentrator/log2"
)

const publishTimeout = 5 * time.Second

var (
	payloadOnline  = []byte("1")
	payloadOffline = []byte("0")
)

type transportMqtt struct {
	log *log2.Log
	m   mqtt.Client

	topicPrefix  string
	topicConnect string
	topicState   string
	topicPayload string
}

func (tm *transportMqtt) Init(ctx context.Context, log *log2.Log, teleConfig Config) error {
	tm.log = log
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log
	if teleConfig.LogDebug {
		mqtt.DEBUG = log
	}

	clientID := teleConfig.ClientID
	if clientID == "" {
		clientID = "concentrator-" + uuid.New().String()
	}
	tm.topicPrefix = teleConfig.TopicPrefix
	if tm.topicPrefix == "" {
		tm.topicPrefix = clientID
	}
	tm.topicConnect = fmt.Sprintf("%s/c", tm.topicPrefix)
	tm.topicState = fmt.Sprintf("%s/w/state", tm.topicPrefix)
	tm.topicPayload = fmt.Sprintf("%s/w/payload", tm.topicPrefix)
	keepAlive := helpers.IntSecondDefault(teleConfig.KeepaliveSec, 60*time.Second)

	mopt := mqtt.NewClientOptions().
		AddBroker(teleConfig.MqttBroker).
		SetBinaryWill(tm.topicConnect, payloadOffline, 1, true).
		SetCleanSession(true).
		SetClientID(clientID).
		SetKeepAlive(keepAlive).
		SetPingTimeout(keepAlive / 2).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(keepAlive / 2).
		SetOnConnectHandler(tm.onConnectHandler).
		SetConnectionLostHandler(tm.connectLostHandler)
	tm.m = mqtt.NewClient(mopt)
	// with ConnectRetry, token completes only after first successful connect
	if token := tm.m.Connect(); token.Error() != nil {
		tm.log.Errorf("tele mqtt connect err=%v", token.Error())
	}
	tm.log.Infof("tele mqtt broker=%s client=%s prefix=%s", teleConfig.MqttBroker, clientID, tm.topicPrefix)
	return nil
}

func (tm *transportMqtt) Close() {
	if token := tm.m.Publish(tm.topicConnect, 1, true, payloadOffline); !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		tm.log.Debugf("tele mqtt offline publish err=%v", token.Error())
	}
	tm.m.Disconnect(250)
}

func (tm *transportMqtt) SendPayload(payload []byte) bool {
	return tm.publish(tm.topicPayload, false, payload)
}

func (tm *transportMqtt) SendState(payload []byte) bool {
	return tm.publish(tm.topicState, true, payload)
}

func (tm *transportMqtt) publish(topic string, retained bool, payload []byte) bool {
	token := tm.m.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		tm.log.Debugf("tele mqtt publish topic=%s timeout", topic)
		return false
	}
	if err := token.Error(); err != nil {
		tm.log.Debugf("tele mqtt publish topic=%s err=%v", topic, err)
		return false
	}
	return true
}

func (tm *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	tm.log.Infof("tele mqtt disconnect err=%v", err)
}

func (tm *transportMqtt) onConnectHandler(c mqtt.Client) {
	tm.log.Infof("tele mqtt connect")
	c.Publish(tm.topicConnect, 1, true, payloadOnline)
}
