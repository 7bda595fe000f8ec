package sqlinline

const QInsertMessage = `--sql d3b3fd51-8165-4d96-9bc1-1d34f32ab297
insert into messages (id, conversation_id, role, content, created_at, updated_at)
select $1::uuid, c.id, $3::text, $4::text, now(), now()
from conversations c
where c.id = $2::uuid
  and c.user_id = $5::text
returning created_at, updated_at;
`

const QInsertJob = `--sql bbeac624-b507-416a-9f44-1d7505416b00
insert into jobs (id, message_id, status, created_at, updated_at)
values ($1::uuid, $2::uuid, 'pending', now(), now())
returning created_at, updated_at;
`

const QSelectJob = `--sql e81f43f8-f636-408f-9afe-8b6dc5081751
select id, message_id, status, script, video_url, error, created_at, updated_at
from jobs
where id = $1::uuid;
`

const QSelectJobWithMessage = `--sql a348f595-e425-4568-9573-7b8e4e0b9f49
select j.id, j.message_id, j.status, j.script, j.video_url, j.error, j.created_at, j.updated_at,
       m.id, m.conversation_id, m.role, m.content, m.created_at, m.updated_at
from jobs j
join messages m on m.id = j.message_id
where j.id = $1::uuid;
`

const QMarkJobProcessing = `--sql 30d6780c-dd4f-4f4c-81b2-5a813206d85c
update jobs
set status = 'processing', error = null, updated_at = now()
where id = $1::uuid
  and status not in ('complete', 'failed');
`

const QSaveJobScript = `--sql 78d3dbc7-eb9d-4236-862a-1dd1422adcd1
update jobs
set script = $2::text, updated_at = now()
where id = $1::uuid
  and status not in ('complete', 'failed');
`

const QMarkJobComplete = `--sql 42bd0711-9011-4ffe-bbe3-58c3aae7d10b
update jobs
set status = 'complete', video_url = $2::text, error = null, updated_at = now()
where id = $1::uuid
  and status not in ('complete', 'failed');
`

const QMarkJobFailed = `--sql ea0a3736-e130-4ad9-be93-7274a43059e8
update jobs
set status = 'failed', error = $2::text, updated_at = now()
where id = $1::uuid
  and status not in ('complete', 'failed');
`

// QSelectStalePendingJobs feeds the operator re-enqueue command.
const QSelectStalePendingJobs = `--sql a9f58711-700c-407d-b412-c1087c50f812
select j.id, c.user_id, m.conversation_id, m.content
from jobs j
join messages m on m.id = j.message_id
join conversations c on c.id = m.conversation_id
where j.status = 'pending'
  and j.created_at < now() - ($1::int * interval '1 second')
order by j.created_at asc
limit $2::int;
`
