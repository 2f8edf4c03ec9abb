package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/rbac-admin/internal/core/events"
)

func TestAudit(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Audit Module Suite")
}

// capturing repository for sink tests
type mockRepository struct {
	entries   []Entry
	appendErr error
}

func (m *mockRepository) Append(_ context.Context, e *Entry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockRepository) List(_ context.Context, limit, offset int) ([]Entry, error) {
	if offset >= len(m.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	return m.entries[offset:end], nil
}

func (m *mockRepository) ListForUser(_ context.Context, userID int64, limit int) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.UserID != nil && *e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ = ginkgo.Describe("AuditService", func() {
	var (
		service *Service
		repo    *mockRepository
	)

	ginkgo.BeforeEach(func() {
		repo = &mockRepository{}
		service = NewService(repo, slog.Default())
	})

	ginkgo.Describe("Record", func() {
		ginkgo.It("should persist the entry with a default timestamp", func() {
			userID := int64(7)
			service.Record(context.Background(), Entry{UserID: &userID, Action: "login"})

			gomega.Expect(repo.entries).To(gomega.HaveLen(1))
			gomega.Expect(repo.entries[0].Action).To(gomega.Equal("login"))
			gomega.Expect(repo.entries[0].Timestamp).To(gomega.BeTemporally("~", time.Now(), time.Second))
		})

		ginkgo.It("should swallow store failures", func() {
			repo.appendErr = errors.New("disk full")

			gomega.Expect(func() {
				service.Record(context.Background(), Entry{Action: "login"})
			}).ToNot(gomega.Panic())
		})
	})

	ginkgo.Describe("HandleSecurityEvent", func() {
		ginkgo.It("should map auth events to short action names", func() {
			userID := int64(2)
			ev := events.NewSecurityEvent(events.EventTypeLoginFailed, &userID, nil, "10.0.0.1", "agent", "invalid password")

			err := service.HandleSecurityEvent(context.Background(), ev)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(repo.entries).To(gomega.HaveLen(1))
			entry := repo.entries[0]
			gomega.Expect(entry.Action).To(gomega.Equal("login_failed"))
			gomega.Expect(*entry.UserID).To(gomega.Equal(int64(2)))
			gomega.Expect(entry.IPAddress).To(gomega.Equal("10.0.0.1"))
			gomega.Expect(entry.Details).To(gomega.Equal("invalid password"))
		})

		ginkgo.It("should keep namespaced actions for management events", func() {
			actor := int64(1)
			ev := events.NewSecurityEvent(events.EventTypeUserCreated, nil, &actor, "", "", "created user carol")

			gomega.Expect(service.HandleSecurityEvent(context.Background(), ev)).To(gomega.Succeed())
			gomega.Expect(repo.entries[0].Action).To(gomega.Equal("user.created"))
			gomega.Expect(*repo.entries[0].PerformedBy).To(gomega.Equal(int64(1)))
		})

		ginkgo.It("should return nil even when the store fails", func() {
			repo.appendErr = errors.New("disk full")
			ev := events.NewSecurityEvent(events.EventTypeLogin, nil, nil, "", "", "")

			gomega.Expect(service.HandleSecurityEvent(context.Background(), ev)).To(gomega.Succeed())
		})

		ginkgo.It("should ignore unexpected event payloads", func() {
			ev := events.BaseEvent{ID: "x", Type: "auth.login", Timestamp: time.Now()}

			gomega.Expect(service.HandleSecurityEvent(context.Background(), ev)).To(gomega.Succeed())
			gomega.Expect(repo.entries).To(gomega.BeEmpty())
		})
	})

	ginkgo.Describe("Subscribe", func() {
		ginkgo.It("should record synchronously published events", func() {
			bus := events.NewEventBus(slog.Default())
			service.Subscribe(bus)

			userID := int64(5)
			ev := events.NewSecurityEvent(events.EventTypeLoginFailed, &userID, nil, "10.0.0.1", "agent", "invalid password")
			gomega.Expect(bus.PublishSync(context.Background(), ev)).To(gomega.Succeed())

			gomega.Expect(repo.entries).To(gomega.HaveLen(1))
			gomega.Expect(repo.entries[0].Action).To(gomega.Equal("login_failed"))
		})

		ginkgo.It("should eventually record asynchronously published events", func() {
			bus := events.NewEventBus(slog.Default())
			service.Subscribe(bus)

			ev := events.NewSecurityEvent(events.EventTypeLogout, nil, nil, "", "", "")
			gomega.Expect(bus.Publish(context.Background(), ev)).To(gomega.Succeed())

			gomega.Eventually(func() int {
				return len(repo.entries)
			}).Should(gomega.Equal(1))
		})
	})

	ginkgo.Describe("List", func() {
		ginkgo.BeforeEach(func() {
			for i := 0; i < 5; i++ {
				service.Record(context.Background(), Entry{Action: "login"})
			}
		})

		ginkgo.It("should apply the default limit", func() {
			entries, err := service.List(context.Background(), 0, 0)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(entries).To(gomega.HaveLen(5))
		})

		ginkgo.It("should cap the limit", func() {
			entries, err := service.List(context.Background(), 10000, 0)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(entries).To(gomega.HaveLen(5))
		})

		ginkgo.It("should respect offset", func() {
			entries, err := service.List(context.Background(), 10, 3)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(entries).To(gomega.HaveLen(2))
		})
	})
})
