package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/handler"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func (s *MarketplaceHandlerTestSuite) TestAdminFeed() {
	srv := httptest.NewServer(s.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/admin/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + s.token(s.buyer)}})
	s.Require().Error(err)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + s.token(s.admin)}})
	s.Require().NoError(err)
	defer conn.Close()

	s.Eventually(func() bool { return s.feed.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	purchaseID := uuid.New()
	ch := make(chan broker.Notification, 1)
	ch <- broker.Notification{
		Type:       broker.NotificationPurchaseCreated,
		PurchaseID: &purchaseID,
		Message:    "Test User requested \"Landing Page Kit\"",
	}
	close(ch)
	s.feed.Run(ch)

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var ev handler.WSEvent
	s.Require().NoError(conn.ReadJSON(&ev))
	s.Equal("notification", ev.Type)
	s.Require().NotNil(ev.Notification)
	s.Equal(broker.NotificationPurchaseCreated, ev.Notification.Type)
	s.Equal(purchaseID, *ev.Notification.PurchaseID)

	conn.Close()
	s.Eventually(func() bool { return s.feed.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
