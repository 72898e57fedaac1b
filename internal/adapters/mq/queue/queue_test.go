package queue_test

import (
	"context"
	"testing"
	"time"

	queue "github.com/okian/crewscore/internal/adapters/mq/queue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryQueue(t *testing.T) {
	Convey("Given an outcome queue", t, func() {
		ctx := context.Background()

		Convey("When enqueueing within capacity", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))
			defer func() { _ = q.Close() }()

			ok := q.Enqueue(ctx, queue.Outcome{InterviewID: "iv-1", OutcomeScore: 80})

			Convey("Then the outcome is accepted", func() {
				So(ok, ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When the queue is full", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(1))
			defer func() { _ = q.Close() }()

			So(q.Enqueue(ctx, queue.Outcome{InterviewID: "iv-1"}), ShouldBeTrue)
			ok := q.Enqueue(ctx, queue.Outcome{InterviewID: "iv-2"})

			Convey("Then the overflow outcome is rejected, not blocked on", func() {
				So(ok, ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When dequeueing", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(4))
			q.Enqueue(ctx, queue.Outcome{InterviewID: "iv-1"})
			q.Enqueue(ctx, queue.Outcome{InterviewID: "iv-2"})
			_ = q.Close()

			Convey("Then pending outcomes are delivered in order before the channel closes", func() {
				out := q.Dequeue(ctx)

				first, ok := <-out
				So(ok, ShouldBeTrue)
				So(first.InterviewID, ShouldEqual, "iv-1")

				second, ok := <-out
				So(ok, ShouldBeTrue)
				So(second.InterviewID, ShouldEqual, "iv-2")

				select {
				case _, ok := <-out:
					So(ok, ShouldBeFalse)
				case <-time.After(time.Second):
					So("dequeue channel did not close", ShouldBeEmpty)
				}
			})
		})

		Convey("When the queue is closed", func() {
			q := queue.NewInMemoryQueue()
			So(q.Close(), ShouldBeNil)

			Convey("Then further enqueues are rejected", func() {
				So(q.Enqueue(ctx, queue.Outcome{InterviewID: "iv-1"}), ShouldBeFalse)
			})

			Convey("And closing again is harmless", func() {
				So(q.Close(), ShouldBeNil)
			})
		})
	})
}
