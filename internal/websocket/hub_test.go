package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liyang960414/erp-sub001/internal/model"
)

func testClient(hub *Hub, userID string) *Client {
	return &Client{
		Hub:    hub,
		UserID: userID,
		Send:   make(chan []byte, 8),
	}
}

// TestHubBroadcast 测试注册客户端都能收到广播
func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c1 := testClient(hub, "alice")
	c2 := testClient(hub, "bob")
	hub.Register <- c1
	hub.Register <- c2

	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast <- []byte("hello")
	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "hello", string(msg))
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

// TestHubUnregister 测试注销后不再收到消息
func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := testClient(hub, "alice")
	hub.Register <- c
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unregister <- c
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 0
	}, time.Second, 10*time.Millisecond)

	// Send 被关闭
	_, open := <-c.Send
	assert.False(t, open)
}

// TestHubShutdown ctx 取消时关闭所有客户端
func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := testClient(hub, "alice")
	hub.Register <- c
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, 0, hub.GetClientCount())
}

// TestNotifyTaskUpdate 测试任务事件的序列化与非阻塞广播
func TestNotifyTaskUpdate(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := testClient(hub, "alice")
	hub.Register <- c
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	task := &model.ImportTask{
		ID:           "task-1",
		Code:         "IMP-20260831-abc",
		ImportType:   "material",
		Status:       model.TaskStatusCompleted,
		TotalCount:   10,
		SuccessCount: 9,
		FailureCount: 1,
	}
	NotifyTaskUpdate(hub, task)

	select {
	case msg := <-c.Send:
		var event TaskEvent
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, "task_update", event.Type)
		assert.Equal(t, "task-1", event.TaskID)
		assert.Equal(t, model.TaskStatusCompleted, event.Status)
		assert.Equal(t, 9, event.SuccessCount)
	case <-time.After(time.Second):
		t.Fatal("client did not receive task event")
	}

	// Hub 为空时静默丢弃,不阻塞
	NotifyTaskUpdate(nil, task)
}

// TestHubBroadcastToUser 测试按用户定向推送
func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := testClient(hub, "alice")
	bob := testClient(hub, "bob")
	hub.Register <- alice
	hub.Register <- bob
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 2
	}, time.Second, 10*time.Millisecond)

	hub.BroadcastToUser("alice", []byte("ping"))

	select {
	case msg := <-alice.Send:
		assert.Equal(t, "ping", string(msg))
	case <-time.After(time.Second):
		t.Fatal("alice did not receive message")
	}
	select {
	case msg := <-bob.Send:
		t.Fatalf("bob should not receive message, got %q", msg)
	default:
	}
}

// TestNotifyTaskUpdateRoutesToSubmitter 记录了提交人的任务只推给提交人和匿名监控端
func TestNotifyTaskUpdateRoutesToSubmitter(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	alice := testClient(hub, "alice")
	bob := testClient(hub, "bob")
	monitor := testClient(hub, "")
	hub.Register <- alice
	hub.Register <- bob
	hub.Register <- monitor
	require.Eventually(t, func() bool {
		return hub.GetClientCount() == 3
	}, time.Second, 10*time.Millisecond)

	task := &model.ImportTask{
		ID:         "task-2",
		Code:       "IMP-20260831-def",
		ImportType: "unit",
		CreatedBy:  "alice",
		Status:     model.TaskStatusRunning,
	}
	NotifyTaskUpdate(hub, task)

	for _, c := range []*Client{alice, monitor} {
		select {
		case msg := <-c.Send:
			var event TaskEvent
			require.NoError(t, json.Unmarshal(msg, &event))
			assert.Equal(t, "task-2", event.TaskID)
			assert.Equal(t, "alice", event.CreatedBy)
		case <-time.After(time.Second):
			t.Fatalf("client %q did not receive task event", c.UserID)
		}
	}
	select {
	case msg := <-bob.Send:
		t.Fatalf("bob should not receive task event, got %q", msg)
	default:
	}
}
