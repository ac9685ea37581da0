package notifier

import (
	"testing"
	"time"

	"github.com/jsgaviriam/checkout/internal/domain"
)

func TestNotifyDeliversToSubscriber(t *testing.T) {
	registry := NewRegistry(nil)

	ch, unsubscribe := registry.Subscribe("tx-1")
	defer unsubscribe()

	registry.Notify("tx-1", domain.StatusUpdate{
		Type:   "transaction.updated",
		Status: domain.StatusApproved,
	})

	select {
	case update := <-ch:
		if update.Status != domain.StatusApproved {
			t.Errorf("ожидался статус APPROVED, получен %s", update.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("обновление не доставлено подписчику")
	}
}

func TestNotifyWithoutSubscriberIsNoop(t *testing.T) {
	registry := NewRegistry(nil)
	// Не должно паниковать и не должно ничего буферизовать.
	registry.Notify("tx-unknown", domain.StatusUpdate{Status: domain.StatusDeclined})

	if got := registry.ActiveSubscribers(); got != 0 {
		t.Errorf("ожидалось 0 подписок, получено %d", got)
	}
}

func TestResubscribeReplacesPrevious(t *testing.T) {
	registry := NewRegistry(nil)

	first, _ := registry.Subscribe("tx-1")
	second, unsubscribe := registry.Subscribe("tx-1")
	defer unsubscribe()

	// Старый канал закрыт вытеснением.
	select {
	case _, ok := <-first:
		if ok {
			t.Fatal("в старый канал не должны приходить обновления")
		}
	case <-time.After(time.Second):
		t.Fatal("старый канал не закрыт при повторной подписке")
	}

	registry.Notify("tx-1", domain.StatusUpdate{Status: domain.StatusApproved})

	select {
	case update := <-second:
		if update.Status != domain.StatusApproved {
			t.Errorf("ожидался статус APPROVED, получен %s", update.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("обновление не доставлено новому подписчику")
	}

	if got := registry.ActiveSubscribers(); got != 1 {
		t.Errorf("ожидалась 1 подписка, получено %d", got)
	}
}

func TestUnsubscribeRemovesOnlyOwnChannel(t *testing.T) {
	registry := NewRegistry(nil)

	_, unsubscribeFirst := registry.Subscribe("tx-1")
	second, unsubscribeSecond := registry.Subscribe("tx-1")
	defer unsubscribeSecond()

	// Отписка вытесненного подписчика не должна трогать нового.
	unsubscribeFirst()

	registry.Notify("tx-1", domain.StatusUpdate{Status: domain.StatusDeclined})

	select {
	case update := <-second:
		if update.Status != domain.StatusDeclined {
			t.Errorf("ожидался статус DECLINED, получен %s", update.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("обновление не доставлено действующему подписчику")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	registry := NewRegistry(nil)

	_, unsubscribe := registry.Subscribe("tx-1")
	unsubscribe()
	unsubscribe()

	if got := registry.ActiveSubscribers(); got != 0 {
		t.Errorf("ожидалось 0 подписок, получено %d", got)
	}
}

// Notify, Subscribe и отписка на одном id не должны гоняться между собой:
// отправка в закрытый канал уронила бы обработку webhook паникой.
func TestNotifyConcurrentWithResubscribe(t *testing.T) {
	registry := NewRegistry(nil)

	const iterations = 200
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < iterations; i++ {
			ch, unsubscribe := registry.Subscribe("tx-race")
			// Вычитываем возможное обновление, чтобы буфер не заполнялся.
			select {
			case <-ch:
			default:
			}
			unsubscribe()
		}
	}()

	for i := 0; i < iterations; i++ {
		registry.Notify("tx-race", domain.StatusUpdate{
			Type:   "transaction.updated",
			Status: domain.StatusApproved,
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("конкурентная подписка/отписка не завершилась")
	}

	if got := registry.ActiveSubscribers(); got != 0 {
		t.Errorf("ожидалось 0 подписок, получено %d", got)
	}
}
