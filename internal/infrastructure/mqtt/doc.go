// Package mqtt provides MQTT client connectivity for the HCP bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained availability messages with a Last Will for offline detection
//   - Publishing with QoS acknowledgement
//   - Subscriptions that survive reconnects
//
// # Topics
//
// The bridge uses the flat graylogic topic scheme:
//
//	graylogic/state/hcp/{door_id}       retained door snapshot
//	graylogic/command/hcp/{door_id}     inbound commands
//	graylogic/ack/hcp/{door_id}         command acknowledgements
//	graylogic/request/hcp/{door_id}     read-back requests
//	graylogic/response/hcp/{door_id}    read-back responses
//	graylogic/health/hcp                retained bridge health
//	graylogic/system/{client_id}/availability
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.DoorCommand("garage-door"), 1,
//	    func(topic string, payload []byte) error {
//	        return bridge.HandleCommand(payload)
//	    })
package mqtt
