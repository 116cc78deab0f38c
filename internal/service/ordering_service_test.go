package service

import (
	"context"
	"course_connect_backend/internal/model"
	"course_connect_backend/internal/repository"
	"course_connect_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
)

// lessonModule 建一个带 n 个课时的章节
func lessonModule(f *fixture, n int) (*model.Module, []*model.Lesson) {
	instructor := f.user(model.Instructor)
	course := f.course(instructor.ID, 0, true)
	m := f.module(course.ID, 1)
	lessons := make([]*model.Lesson, 0, n)
	for i := 1; i <= n; i++ {
		lessons = append(lessons, f.lesson(m.ID, i))
	}
	return m, lessons
}

func createLessonAt(f *fixture, s *OrderingService, moduleID uint, desired *int) (*model.Lesson, error) {
	lesson := &model.Lesson{ModuleID: moduleID, Title: "new"}
	_, err := s.Insert(context.Background(), repository.LessonOrderScope, moduleID, desired, func(tx *gorm.DB, order int) error {
		lesson.Order = order
		return tx.Create(lesson).Error
	})
	return lesson, err
}

func TestMoveLastToFirst(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 3)

	require.NoError(t, s.Move(context.Background(), repository.LessonOrderScope, ls[2].ID, 1, nil))

	got := f.orders(repository.LessonOrderScope, m.ID)
	assert.Equal(t, 1, got[ls[2].ID])
	assert.Equal(t, 2, got[ls[0].ID])
	assert.Equal(t, 3, got[ls[1].ID])
}

func TestMoveDown(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 4)

	require.NoError(t, s.Move(context.Background(), repository.LessonOrderScope, ls[0].ID, 3, nil))

	got := f.orders(repository.LessonOrderScope, m.ID)
	assert.Equal(t, map[uint]int{ls[1].ID: 1, ls[2].ID: 2, ls[0].ID: 3, ls[3].ID: 4}, got)
}

func TestMoveToSamePositionIsNoop(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 3)
	before := f.orders(repository.LessonOrderScope, m.ID)

	updated := false
	err := s.Move(context.Background(), repository.LessonOrderScope, ls[1].ID, 2, func(tx *gorm.DB, item repository.OrderedItem) error {
		updated = true
		assert.Equal(t, 2, item.Order)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, updated)
	assert.Equal(t, before, f.orders(repository.LessonOrderScope, m.ID))
}

func TestMoveOutOfRange(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 3)
	before := f.orders(repository.LessonOrderScope, m.ID)

	for _, order := range []int{0, 4, -1} {
		err := s.Move(context.Background(), repository.LessonOrderScope, ls[0].ID, order, nil)
		assert.ErrorIs(t, err, util.ErrOutOfRange, "order %d", order)
	}
	assert.Equal(t, before, f.orders(repository.LessonOrderScope, m.ID))
}

func TestMoveUnknownItem(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()

	err := s.Move(context.Background(), repository.LessonOrderScope, 999, 1, nil)
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestMoveSpanWrapsTransaction(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	f := newFixture(t)
	s := f.ordering()
	_, ls := lessonModule(f, 3)

	require.NoError(t, s.Move(context.Background(), repository.LessonOrderScope, ls[2].ID, 1, nil))
	require.Error(t, s.Move(context.Background(), repository.LessonOrderScope, ls[2].ID, 9, nil))

	spans := recorder.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "db.transaction", spans[0].Name())
	assert.Equal(t, "ordering.move", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[3].Status().Code)
}

func TestInsertAppendsByDefault(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, _ := lessonModule(f, 2)

	lesson, err := createLessonAt(f, s, m.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, lesson.Order)
	f.requireContiguous(repository.LessonOrderScope, m.ID)
}

func TestInsertMakesRoom(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 3)

	lesson, err := createLessonAt(f, s, m.ID, intPtr(2))
	require.NoError(t, err)

	got := f.orders(repository.LessonOrderScope, m.ID)
	assert.Equal(t, map[uint]int{ls[0].ID: 1, lesson.ID: 2, ls[1].ID: 3, ls[2].ID: 4}, got)
}

func TestInsertIntoEmptyParent(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, _ := lessonModule(f, 0)

	lesson, err := createLessonAt(f, s, m.ID, intPtr(1))
	require.NoError(t, err)
	assert.Equal(t, 1, lesson.Order)
}

func TestInsertRejectsGap(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, _ := lessonModule(f, 2)

	_, err := createLessonAt(f, s, m.ID, intPtr(5))
	assert.ErrorIs(t, err, util.ErrOutOfRange)

	_, err = createLessonAt(f, s, m.ID, intPtr(0))
	assert.ErrorIs(t, err, util.ErrOutOfRange)

	count, err := repository.NewOrderingRepository(f.db).Count(f.db, repository.LessonOrderScope, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInsertUnknownParent(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()

	_, err := createLessonAt(f, s, 12345, nil)
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestInsertRollsBackShiftWhenCreateFails(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, _ := lessonModule(f, 3)
	before := f.orders(repository.LessonOrderScope, m.ID)

	_, err := s.Insert(context.Background(), repository.LessonOrderScope, m.ID, intPtr(1), func(tx *gorm.DB, order int) error {
		return util.BadRequestError("BOOM", "create failed")
	})
	require.Error(t, err)

	assert.Equal(t, before, f.orders(repository.LessonOrderScope, m.ID))
}

func TestDeleteRenumbers(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 5)

	deleted, err := s.Delete(context.Background(), repository.LessonOrderScope, ls[1].ID, func(tx *gorm.DB, item repository.OrderedItem) error {
		return tx.Delete(&model.Lesson{}, item.ID).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted.Order)

	got := f.orders(repository.LessonOrderScope, m.ID)
	assert.Equal(t, map[uint]int{ls[0].ID: 1, ls[2].ID: 2, ls[3].ID: 3, ls[4].ID: 4}, got)
}

func TestDeleteLastKeepsOthers(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 3)

	_, err := s.Delete(context.Background(), repository.LessonOrderScope, ls[2].ID, func(tx *gorm.DB, item repository.OrderedItem) error {
		return tx.Delete(&model.Lesson{}, item.ID).Error
	})
	require.NoError(t, err)

	assert.Equal(t, map[uint]int{ls[0].ID: 1, ls[1].ID: 2}, f.orders(repository.LessonOrderScope, m.ID))
}

func TestMixedOperationsStayContiguous(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	ctx := context.Background()
	m, ls := lessonModule(f, 4)
	remove := func(tx *gorm.DB, item repository.OrderedItem) error {
		return tx.Delete(&model.Lesson{}, item.ID).Error
	}

	_, err := createLessonAt(f, s, m.ID, intPtr(1))
	require.NoError(t, err)
	f.requireContiguous(repository.LessonOrderScope, m.ID)

	require.NoError(t, s.Move(ctx, repository.LessonOrderScope, ls[3].ID, 2, nil))
	f.requireContiguous(repository.LessonOrderScope, m.ID)

	_, err = s.Delete(ctx, repository.LessonOrderScope, ls[0].ID, remove)
	require.NoError(t, err)
	f.requireContiguous(repository.LessonOrderScope, m.ID)

	_, err = createLessonAt(f, s, m.ID, nil)
	require.NoError(t, err)
	require.NoError(t, s.Move(ctx, repository.LessonOrderScope, ls[1].ID, 5, nil))
	f.requireContiguous(repository.LessonOrderScope, m.ID)

	_, err = s.Delete(ctx, repository.LessonOrderScope, ls[1].ID, remove)
	require.NoError(t, err)
	f.requireContiguous(repository.LessonOrderScope, m.ID)
}

func TestBulkReorder(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 4)

	result, err := s.BulkReorder(context.Background(), repository.LessonOrderScope, m.ID, []OrderUpdate{
		{ID: ls[3].ID, Order: 1},
		{ID: ls[0].ID, Order: 4},
	})
	require.NoError(t, err)
	require.Len(t, result, 4)

	want := map[uint]int{ls[3].ID: 1, ls[1].ID: 2, ls[2].ID: 3, ls[0].ID: 4}
	assert.Equal(t, want, f.orders(repository.LessonOrderScope, m.ID))
	for i, item := range result {
		assert.Equal(t, i+1, item.Order)
	}
}

func TestBulkReorderModules(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	instructor := f.user(model.Instructor)
	course := f.course(instructor.ID, 0, true)
	m1, m2, m3 := f.module(course.ID, 1), f.module(course.ID, 2), f.module(course.ID, 3)

	_, err := s.BulkReorder(context.Background(), repository.ModuleOrderScope, course.ID, []OrderUpdate{
		{ID: m1.ID, Order: 3},
		{ID: m2.ID, Order: 1},
		{ID: m3.ID, Order: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, map[uint]int{m2.ID: 1, m3.ID: 2, m1.ID: 3}, f.orders(repository.ModuleOrderScope, course.ID))
}

func TestBulkReorderRejectsForeignItem(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, ls := lessonModule(f, 2)
	other := f.module(m.CourseID, 2)
	stranger := f.lesson(other.ID, 1)
	before := f.orders(repository.LessonOrderScope, m.ID)

	_, err := s.BulkReorder(context.Background(), repository.LessonOrderScope, m.ID, []OrderUpdate{
		{ID: ls[0].ID, Order: 2},
		{ID: stranger.ID, Order: 1},
	})
	assert.ErrorIs(t, err, util.ErrBadParent)
	assert.Equal(t, before, f.orders(repository.LessonOrderScope, m.ID))
}

func TestPlanReorder(t *testing.T) {
	items := []repository.OrderedItem{
		{ID: 10, ParentID: 1, Order: 1},
		{ID: 11, ParentID: 1, Order: 2},
		{ID: 12, ParentID: 1, Order: 3},
	}

	tests := []struct {
		name    string
		updates []OrderUpdate
		want    []uint
		wantErr *util.AppError
	}{
		{name: "完整映射", updates: []OrderUpdate{{10, 3}, {11, 1}, {12, 2}}, want: []uint{11, 12, 10}},
		{name: "部分映射按原顺序补位", updates: []OrderUpdate{{12, 1}}, want: []uint{12, 10, 11}},
		{name: "越界", updates: []OrderUpdate{{10, 4}}, wantErr: util.ErrOutOfRange},
		{name: "不属于父级", updates: []OrderUpdate{{99, 1}}, wantErr: util.ErrBadParent},
		{name: "重复顺序", updates: []OrderUpdate{{10, 1}, {11, 1}}, wantErr: util.BadRequestError("DUPLICATE_ORDER", "")},
		{name: "重复 id", updates: []OrderUpdate{{10, 1}, {10, 2}}, wantErr: util.BadRequestError("DUPLICATE_ITEM", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, err := planReorder(repository.LessonOrderScope, 1, items, tt.updates)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			ids := make([]uint, 0, len(final))
			for i, item := range final {
				assert.Equal(t, i+1, item.Order)
				ids = append(ids, item.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestHighestOrder(t *testing.T) {
	f := newFixture(t)
	s := f.ordering()
	m, _ := lessonModule(f, 3)
	empty := f.module(m.CourseID, 2)

	highest, err := s.HighestOrder(context.Background(), repository.LessonOrderScope, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, highest)

	highest, err = s.HighestOrder(context.Background(), repository.LessonOrderScope, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, highest)
}
