package sqlinline

const QSelectUserQuota = `--sql 20dffd60-ed18-4203-94c2-86b57aec68cc
select id, daily_animation_count, last_animation_date
from users
where id = $1::text;
`

// QLockUserQuota holds the user row until the surrounding transaction ends,
// serialising concurrent submissions by the same user.
const QLockUserQuota = `--sql adf6f402-733f-4eec-8576-78cb30bd1bb4
select id, daily_animation_count, last_animation_date
from users
where id = $1::text
for update;
`

const QUpdateUserQuota = `--sql bad04f47-8c13-4771-b9aa-4f31932980c3
update users
set daily_animation_count = $2::int,
    last_animation_date = $3::date,
    updated_at = now()
where id = $1::text;
`

const QResetUserQuota = `--sql ee2818e1-b76c-4892-8242-da74cab95c1f
update users
set daily_animation_count = 0,
    last_animation_date = null,
    updated_at = now()
where id = $1::text;
`
